package stack

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// StorageResources holds the backup bucket
type StorageResources struct {
	Bucket            *s3.Bucket
	PublicAccessBlock *s3.BucketPublicAccessBlock
}

// createStorageResources creates the backup bucket. Objects are always
// emptied on delete so teardown never trips over a non-empty bucket; with
// RetainOnDelete the bucket itself is left behind instead.
func (b *builder) createStorageResources() (*StorageResources, error) {
	spec := b.p.Bucket
	bucketName := b.name("backup-bucket")

	var extra []pulumi.ResourceOption
	if spec.RetainOnDelete {
		extra = append(extra, pulumi.RetainOnDelete(true))
	}

	bucket, err := s3.NewBucket(b.ctx, bucketName, &s3.BucketArgs{
		Bucket: pulumi.String(spec.Name),
		Acl:    pulumi.String("private"),
		Versioning: &s3.BucketVersioningArgs{
			Enabled: pulumi.Bool(spec.Versioning),
		},
		// Configure server-side encryption
		ServerSideEncryptionConfiguration: &s3.BucketServerSideEncryptionConfigurationArgs{
			Rule: &s3.BucketServerSideEncryptionConfigurationRuleArgs{
				ApplyServerSideEncryptionByDefault: &s3.BucketServerSideEncryptionConfigurationRuleApplyServerSideEncryptionByDefaultArgs{
					SseAlgorithm: pulumi.String(spec.Encryption),
				},
			},
		},
		ForceDestroy: pulumi.Bool(true),
		Tags:         b.tags(spec.Name),
	}, b.opts(extra...)...)
	if err != nil {
		return nil, provisionErr(bucketName, err)
	}
	b.graph.add(Node{
		Name:          bucketName,
		Kind:          KindBucket,
		Retain:        spec.RetainOnDelete,
		EmptyOnDelete: true,
	})

	blockName := b.name("backup-bucket-public-access")
	block, err := s3.NewBucketPublicAccessBlock(b.ctx, blockName, &s3.BucketPublicAccessBlockArgs{
		Bucket:                bucket.ID(),
		BlockPublicAcls:       pulumi.Bool(true),
		BlockPublicPolicy:     pulumi.Bool(true),
		IgnorePublicAcls:      pulumi.Bool(true),
		RestrictPublicBuckets: pulumi.Bool(true),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(blockName, err)
	}
	b.graph.add(Node{Name: blockName, Kind: KindBucketAccessBlock, DependsOn: []string{bucketName}})

	return &StorageResources{
		Bucket:            bucket,
		PublicAccessBlock: block,
	}, nil
}
