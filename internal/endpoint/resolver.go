// Package endpoint resolves a freshly provisioned instance and waits for it
// to reach a connectable state before deployment traffic is pointed at it.
package endpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stackpilot/stackpilot/pkg/logging"
)

const (
	defaultWaitTimeout  = 5 * time.Minute
	defaultPollInterval = 15 * time.Second
)

// EC2API is the slice of the EC2 client the resolver uses. It satisfies
// ec2.DescribeInstancesAPIClient so the SDK waiter can drive it directly.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// Endpoint describes a resolved instance.
type Endpoint struct {
	InstanceID string `json:"instance_id"`
	PublicIP   string `json:"public_ip"`
	PublicDNS  string `json:"public_dns"`
	State      string `json:"state"`
}

// Resolver looks up instances and waits for them to run.
type Resolver struct {
	client       EC2API
	waitTimeout  time.Duration
	pollInterval time.Duration
	logger       *logging.Logger
}

// NewResolver builds a resolver against the real EC2 service.
func NewResolver(ctx context.Context, region, awsEndpoint string) (*Resolver, error) {
	cfg, err := loadEC2Config(ctx, region, awsEndpoint)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		client:       ec2.NewFromConfig(cfg),
		waitTimeout:  defaultWaitTimeout,
		pollInterval: defaultPollInterval,
		logger:       logging.New("endpoint"),
	}, nil
}

// NewResolverWithClient builds a resolver around an existing client.
func NewResolverWithClient(client EC2API) *Resolver {
	return &Resolver{
		client:       client,
		waitTimeout:  defaultWaitTimeout,
		pollInterval: defaultPollInterval,
		logger:       logging.New("endpoint"),
	}
}

// WaitReady blocks until the instance reports running, then returns its
// resolved addresses.
func (r *Resolver) WaitReady(ctx context.Context, instanceID string) (*Endpoint, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("instance ID is required")
	}

	r.logger.Info("waiting for instance to run", "instance_id", instanceID)

	waiter := ec2.NewInstanceRunningWaiter(r.client, func(o *ec2.InstanceRunningWaiterOptions) {
		o.MinDelay = r.pollInterval
		o.MaxDelay = r.pollInterval
	})
	input := &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}
	if err := waiter.Wait(ctx, input, r.waitTimeout); err != nil {
		return nil, fmt.Errorf("instance %s did not reach running state: %w", instanceID, err)
	}

	return r.Resolve(ctx, instanceID)
}

// Resolve returns the current addresses and state of the instance.
func (r *Resolver) Resolve(ctx context.Context, instanceID string) (*Endpoint, error) {
	out, err := r.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}

	instance, err := singleInstance(out)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", instanceID, err)
	}

	ep := &Endpoint{
		InstanceID: aws.ToString(instance.InstanceId),
		PublicIP:   aws.ToString(instance.PublicIpAddress),
		PublicDNS:  aws.ToString(instance.PublicDnsName),
	}
	if instance.State != nil {
		ep.State = string(instance.State.Name)
	}

	r.logger.Info("instance resolved",
		"instance_id", ep.InstanceID,
		"public_ip", ep.PublicIP,
		"state", ep.State)
	return ep, nil
}

func singleInstance(out *ec2.DescribeInstancesOutput) (*ec2types.Instance, error) {
	for _, reservation := range out.Reservations {
		for i := range reservation.Instances {
			return &reservation.Instances[i], nil
		}
	}
	return nil, fmt.Errorf("not found")
}
