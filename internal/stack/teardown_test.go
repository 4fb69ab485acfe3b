package stack

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine applies and destroys a Graph the way a provisioning engine
// would: creation in dependency order, deletion in reverse, retained
// resources abandoned in place and adopted again on the next apply.
type stubEngine struct {
	live       map[string]string
	objects    map[string]int
	created    []string
	deleted    []string
	nextPhysID int
}

func newStubEngine() *stubEngine {
	return &stubEngine{live: map[string]string{}, objects: map[string]int{}}
}

func (e *stubEngine) apply(g *Graph) error {
	order, err := g.CreationOrder()
	if err != nil {
		return err
	}
	for _, name := range order {
		n, _ := g.Node(name)
		for _, dep := range n.DependsOn {
			if _, ok := e.live[dep]; !ok {
				return fmt.Errorf("%s created before its dependency %s", name, dep)
			}
		}
		if _, ok := e.live[name]; ok {
			continue
		}
		e.nextPhysID++
		e.live[name] = fmt.Sprintf("phys-%d", e.nextPhysID)
		e.created = append(e.created, name)
	}
	return nil
}

func (e *stubEngine) destroy(g *Graph) error {
	order, err := g.TeardownOrder()
	if err != nil {
		return err
	}
	for _, name := range order {
		n, _ := g.Node(name)
		if n.Retain {
			continue
		}
		for _, other := range g.Nodes {
			if _, ok := e.live[other.Name]; !ok || other.Name == name {
				continue
			}
			for _, dep := range other.DependsOn {
				if dep == name && !other.Retain {
					return fmt.Errorf("%s deleted while %s still depends on it", name, other.Name)
				}
			}
		}
		if n.Kind == KindBucket && e.objects[name] > 0 {
			if !n.EmptyOnDelete {
				return fmt.Errorf("bucket %s is not empty", name)
			}
			e.objects[name] = 0
		}
		delete(e.live, name)
		e.deleted = append(e.deleted, name)
	}
	return nil
}

func TestTeardown_NonEmptyBucket(t *testing.T) {
	for _, retain := range []bool{false, true} {
		t.Run(fmt.Sprintf("retainOnDelete=%v", retain), func(t *testing.T) {
			p := testParams()
			p.Bucket.RetainOnDelete = retain
			res, err := buildWithMocks(newMocks(), p)
			require.NoError(t, err)

			engine := newStubEngine()
			require.NoError(t, engine.apply(res.Graph))
			engine.objects["sakura-backup-bucket"] = 42

			require.NoError(t, engine.destroy(res.Graph))

			_, bucketLive := engine.live["sakura-backup-bucket"]
			assert.Equal(t, retain, bucketLive)
			_, instanceLive := engine.live["sakura-ec2"]
			assert.False(t, instanceLive)
		})
	}
}

func TestTeardown_BucketWithoutAutoEmptyFails(t *testing.T) {
	g := &Graph{Nodes: []Node{{Name: "bucket", Kind: KindBucket}}}
	engine := newStubEngine()
	require.NoError(t, engine.apply(g))
	engine.objects["bucket"] = 1

	err := engine.destroy(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not empty")
}

func TestTeardown_ElasticIPSurvivesReapply(t *testing.T) {
	res, err := buildWithMocks(newMocks(), testParams())
	require.NoError(t, err)

	engine := newStubEngine()
	require.NoError(t, engine.apply(res.Graph))
	allocation := engine.live["sakura-elastic-ip"]
	instance := engine.live["sakura-ec2"]
	require.NotEmpty(t, allocation)

	require.NoError(t, engine.destroy(res.Graph))
	assert.Equal(t, allocation, engine.live["sakura-elastic-ip"])
	assert.NotContains(t, engine.deleted, "sakura-elastic-ip")
	assert.Contains(t, engine.deleted, "sakura-eip-association")

	require.NoError(t, engine.apply(res.Graph))
	assert.Equal(t, allocation, engine.live["sakura-elastic-ip"])
	assert.NotEqual(t, instance, engine.live["sakura-ec2"], "instance is recreated")
}

func TestTeardown_FullGraphWithDNS(t *testing.T) {
	p := testParams()
	p.EnableDNS = true
	p.CreateKeyPair = true
	p.Key.Name = "fresh-key"
	p.Network.PrivateSubnets = true
	p.Network.NatGateways = 2

	res, err := buildWithMocks(newMocks(), p)
	require.NoError(t, err)

	engine := newStubEngine()
	require.NoError(t, engine.apply(res.Graph))
	assert.Len(t, engine.created, len(res.Graph.Nodes))

	require.NoError(t, engine.destroy(res.Graph))
	assert.Equal(t, []string{"sakura-elastic-ip"}, liveNames(engine.live))
}

func liveNames(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
