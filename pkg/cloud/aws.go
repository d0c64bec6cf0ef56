package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

// EC2API is the part of the EC2 client the inventory uses.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// CloudWatchAPI is the part of the CloudWatch client the metric fetcher uses.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
	ListMetrics(ctx context.Context, params *cloudwatch.ListMetricsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error)
}

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type AWSProvider struct {
	ec2Client        EC2API
	cloudWatchClient CloudWatchAPI
	stsClient        STSAPI
	region           string
	cfg              aws.Config
}

func NewAWSProvider(ctx context.Context, region string) (*AWSProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	p := NewAWSProviderFromClients(region, ec2.NewFromConfig(cfg), cloudwatch.NewFromConfig(cfg), sts.NewFromConfig(cfg))
	p.cfg = cfg
	return p, nil
}

func NewAWSProviderFromClients(region string, ec2Client EC2API, cw CloudWatchAPI, stsClient STSAPI) *AWSProvider {
	return &AWSProvider{
		ec2Client:        ec2Client,
		cloudWatchClient: cw,
		stsClient:        stsClient,
		region:           region,
	}
}

// Config is the loaded SDK configuration, shared with the SES mailer.
func (a *AWSProvider) Config() aws.Config {
	return a.cfg
}

func (a *AWSProvider) Name() string    { return "aws" }
func (a *AWSProvider) Service() string { return "EC2" }

func (a *AWSProvider) Account(ctx context.Context) string {
	if a.stsClient == nil {
		return "AWS unknown"
	}
	out, err := a.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil || aws.ToString(out.Account) == "" {
		return "AWS unknown"
	}
	return "AWS " + aws.ToString(out.Account)
}

func (a *AWSProvider) ListInstances(ctx context.Context, filter InstanceFilter) ([]models.Instance, error) {
	input := &ec2.DescribeInstancesInput{}
	if filter.OnlyRunning {
		input.Filters = append(input.Filters, ec2types.Filter{
			Name:   aws.String("instance-state-name"),
			Values: []string{"running"},
		})
	}
	if filter.HasTag() {
		input.Filters = append(input.Filters, ec2types.Filter{
			Name:   aws.String("tag:" + filter.TagKey),
			Values: []string{filter.TagValue},
		})
	}

	var servers []models.Instance
	paginator := ec2.NewDescribeInstancesPaginator(a.ec2Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				servers = append(servers, a.toInstance(instance))
				if filter.MaxInstances > 0 && len(servers) >= filter.MaxInstances {
					return servers, nil
				}
			}
		}
	}

	return servers, nil
}

func (a *AWSProvider) toInstance(instance ec2types.Instance) models.Instance {
	server := models.Instance{
		ID:     aws.ToString(instance.InstanceId),
		Region: a.region,
		Type:   string(instance.InstanceType),
	}
	if server.ID == "" {
		server.ID = "-"
	}
	if instance.State != nil {
		server.State = string(instance.State.Name)
	}
	if instance.Placement != nil {
		server.Zone = aws.ToString(instance.Placement.AvailabilityZone)
	}
	if len(instance.Tags) > 0 {
		server.Tags = make(map[string]string, len(instance.Tags))
		for _, t := range instance.Tags {
			server.Tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
		server.Name = server.Tags["Name"]
	}
	return server
}

func (a *AWSProvider) QueryMetric(ctx context.Context, q MetricQuery) ([]Datapoint, error) {
	stat := q.Statistic
	if stat == "" {
		stat = StatAverage
	}
	input := &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.Namespace),
		MetricName: aws.String(q.MetricName),
		Dimensions: toCloudWatchDimensions(q.Dimensions),
		StartTime:  aws.Time(q.Start),
		EndTime:    aws.Time(q.End),
		Period:     aws.Int32(int32(q.Period / time.Second)),
		Statistics: []cwtypes.Statistic{cwtypes.Statistic(stat)},
	}

	result, err := a.cloudWatchClient.GetMetricStatistics(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get metric statistics %s/%s: %w", q.Namespace, q.MetricName, err)
	}

	points := make([]Datapoint, 0, len(result.Datapoints))
	for _, dp := range result.Datapoints {
		p := Datapoint{Timestamp: aws.ToTime(dp.Timestamp)}
		if v := statisticValue(dp, stat); v != nil {
			p.Value, p.Valid = *v, true
		}
		points = append(points, p)
	}
	return points, nil
}

func statisticValue(dp cwtypes.Datapoint, stat Statistic) *float64 {
	switch stat {
	case StatMaximum:
		return dp.Maximum
	case StatMinimum:
		return dp.Minimum
	default:
		return dp.Average
	}
}

func (a *AWSProvider) ListDimensionSets(ctx context.Context, namespace, metric string, partial []Dimension, maxScan int) ([][]Dimension, error) {
	filters := make([]cwtypes.DimensionFilter, 0, len(partial))
	for _, d := range partial {
		f := cwtypes.DimensionFilter{Name: aws.String(d.Name)}
		if d.Value != "" {
			f.Value = aws.String(d.Value)
		}
		filters = append(filters, f)
	}

	var sets [][]Dimension
	paginator := cloudwatch.NewListMetricsPaginator(a.cloudWatchClient, &cloudwatch.ListMetricsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metric),
		Dimensions: filters,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list metrics %s/%s: %w", namespace, metric, err)
		}
		for _, m := range page.Metrics {
			dims := fromCloudWatchDimensions(m.Dimensions)
			if !containsAll(dims, partial) {
				continue
			}
			sets = append(sets, dims)
			if maxScan > 0 && len(sets) >= maxScan {
				return sets, nil
			}
		}
	}
	return sets, nil
}

func (a *AWSProvider) Sources() MetricSources {
	return MetricSources{
		CPU: MetricSource{
			Namespace:         "AWS/EC2",
			Name:              "CPUUtilization",
			InstanceDimension: "InstanceId",
			Scale:             1,
		},
		Memory: MetricSource{
			Namespace:         "CWAgent",
			Name:              "mem_used_percent",
			InstanceDimension: "InstanceId",
			Discover:          true,
			Scale:             1,
		},
		Disk: MetricSource{
			Namespace:         "CWAgent",
			Name:              "disk_used_percent",
			InstanceDimension: "InstanceId",
			Discover:          true,
			Scale:             1,
		},
	}
}

func (a *AWSProvider) ConsoleLink(region, instanceID string) string {
	return fmt.Sprintf("https://%s.console.aws.amazon.com/ec2/home?region=%s#InstanceDetails:instanceId=%s", region, region, instanceID)
}

func toCloudWatchDimensions(dims []Dimension) []cwtypes.Dimension {
	out := make([]cwtypes.Dimension, 0, len(dims))
	for _, d := range dims {
		out = append(out, cwtypes.Dimension{Name: aws.String(d.Name), Value: aws.String(d.Value)})
	}
	return out
}

func fromCloudWatchDimensions(dims []cwtypes.Dimension) []Dimension {
	out := make([]Dimension, 0, len(dims))
	for _, d := range dims {
		out = append(out, Dimension{Name: aws.ToString(d.Name), Value: aws.ToString(d.Value)})
	}
	return out
}
