// Package preflight checks the external references of a sakura deployment
// against the live AWS account before the stack is applied. It only reads.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/zhang1980s/sakura-pocketbase-stack/internal/logging"
	"github.com/zhang1980s/sakura-pocketbase-stack/internal/stack"
)

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type EC2API interface {
	DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
}

type Route53API interface {
	ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
}

type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Checker runs the read-only checks. Each client is used by one check.
type Checker struct {
	STS     STSAPI
	EC2     EC2API
	Route53 Route53API
	S3      S3API
}

// NewChecker builds a Checker from a loaded AWS config.
func NewChecker(cfg aws.Config) *Checker {
	return &Checker{
		STS:     sts.NewFromConfig(cfg),
		EC2:     ec2.NewFromConfig(cfg),
		Route53: route53.NewFromConfig(cfg),
		S3:      s3.NewFromConfig(cfg),
	}
}

// Finding is the outcome of one check. Err is nil when it passed.
type Finding struct {
	Check  string
	Detail string
	Err    error
}

type Report struct {
	Findings []Finding
}

// Failed returns the findings that carry an error.
func (r Report) Failed() []Finding {
	var failed []Finding
	for _, f := range r.Findings {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

func (r *Report) add(check, detail string, err error) {
	r.Findings = append(r.Findings, Finding{Check: check, Detail: detail, Err: err})
	if err != nil {
		logging.Component("preflight").Warn("check failed", "check", check, "error", err)
		return
	}
	logging.Component("preflight").Debug("check passed", "check", check, "detail", detail)
}

// Run validates p structurally and then checks every external reference.
// All checks run; the returned error joins the failures.
func (c *Checker) Run(ctx context.Context, p stack.Params) (Report, error) {
	var report Report
	if err := p.Validate(); err != nil {
		report.add("params", "", err)
		return report, err
	}

	report.add(c.checkAccount(ctx, p.AccountID))
	report.add(c.checkKeyPair(ctx, p.Key.Name, p.CreateKeyPair))
	if p.EnableDNS {
		report.add(c.checkHostedZone(ctx, p.DNS.ZoneName))
	}
	report.add(c.checkBucket(ctx, p.Bucket.Name, p.AccountID))

	var errs []error
	for _, f := range report.Failed() {
		errs = append(errs, f.Err)
	}
	return report, errors.Join(errs...)
}

func (c *Checker) checkAccount(ctx context.Context, accountID string) (string, string, error) {
	const check = "account"
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return check, "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	caller := aws.ToString(out.Account)
	if caller != accountID {
		return check, caller, &stack.ValidationError{
			Field:  "accountId",
			Reason: fmt.Sprintf("credentials belong to %s, stack targets %s", caller, accountID),
		}
	}
	return check, caller, nil
}

func (c *Checker) checkKeyPair(ctx context.Context, keyName string, create bool) (string, string, error) {
	const check = "key pair"
	out, err := c.EC2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		KeyNames: []string{keyName},
	})
	exists := err == nil && len(out.KeyPairs) > 0
	if err != nil && !isAPIError(err, "InvalidKeyPair.NotFound") {
		return check, keyName, fmt.Errorf("failed to describe key pair %s: %w", keyName, err)
	}

	switch {
	case create && exists:
		return check, keyName, &stack.ValidationError{
			Field:  "key.name",
			Reason: fmt.Sprintf("key pair %s already exists and would collide with the one the stack creates", keyName),
		}
	case !create && !exists:
		return check, keyName, &stack.ReferenceNotFoundError{Kind: "key pair", Name: keyName, Cause: err}
	case exists:
		return check, aws.ToString(out.KeyPairs[0].KeyPairId), nil
	}
	return check, keyName + " (created by stack)", nil
}

func (c *Checker) checkHostedZone(ctx context.Context, zoneName string) (string, string, error) {
	const check = "hosted zone"
	want := strings.TrimSuffix(zoneName, ".") + "."
	out, err := c.Route53.ListHostedZonesByName(ctx, &route53.ListHostedZonesByNameInput{
		DNSName:  aws.String(want),
		MaxItems: aws.Int32(10),
	})
	if err != nil {
		return check, zoneName, fmt.Errorf("failed to list hosted zones: %w", err)
	}
	// Results start at DNSName in lexical order, so only exact names count
	for _, z := range out.HostedZones {
		if aws.ToString(z.Name) != want {
			continue
		}
		if z.Config != nil && z.Config.PrivateZone {
			continue
		}
		return check, aws.ToString(z.Id), nil
	}
	return check, zoneName, &stack.ReferenceNotFoundError{Kind: "hosted zone", Name: zoneName}
}

func (c *Checker) checkBucket(ctx context.Context, bucket, accountID string) (string, string, error) {
	const check = "bucket name"
	_, err := c.S3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket:              aws.String(bucket),
		ExpectedBucketOwner: aws.String(accountID),
	})
	if err == nil {
		return check, bucket + " (already owned by this account)", nil
	}

	var notFound *s3types.NotFound
	if errors.As(err, &notFound) || httpStatus(err) == http.StatusNotFound {
		return check, bucket + " (available)", nil
	}
	if httpStatus(err) == http.StatusForbidden {
		return check, bucket, &stack.ValidationError{
			Field:  "bucket.name",
			Reason: fmt.Sprintf("%s is already taken in the global S3 namespace", bucket),
		}
	}
	return check, bucket, fmt.Errorf("failed to head bucket %s: %w", bucket, err)
}

func isAPIError(err error, code string) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == code
}

func httpStatus(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}
