package cloud

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/google/go-cmp/cmp"
)

type fakeEC2 struct {
	pages  [][]ec2types.Instance
	calls  int
	inputs []*ec2.DescribeInstancesInput
	err    error
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.calls++
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	i := 0
	if in.NextToken != nil {
		i, _ = strconv.Atoi(*in.NextToken)
	}
	out := &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{Instances: f.pages[i]}}}
	if i+1 < len(f.pages) {
		out.NextToken = aws.String(strconv.Itoa(i + 1))
	}
	return out, nil
}

type fakeCloudWatch struct {
	datapoints  []cwtypes.Datapoint
	metrics     [][]cwtypes.Metric
	listCalls   int
	statsInputs []*cloudwatch.GetMetricStatisticsInput
}

func (f *fakeCloudWatch) GetMetricStatistics(_ context.Context, in *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	f.statsInputs = append(f.statsInputs, in)
	return &cloudwatch.GetMetricStatisticsOutput{Datapoints: f.datapoints}, nil
}

func (f *fakeCloudWatch) ListMetrics(_ context.Context, in *cloudwatch.ListMetricsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error) {
	f.listCalls++
	i := 0
	if in.NextToken != nil {
		i, _ = strconv.Atoi(*in.NextToken)
	}
	out := &cloudwatch.ListMetricsOutput{Metrics: f.metrics[i]}
	if i+1 < len(f.metrics) {
		out.NextToken = aws.String(strconv.Itoa(i + 1))
	}
	return out, nil
}

type fakeSTS struct {
	account string
	err     error
}

func (f fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func instance(id, name string) ec2types.Instance {
	inst := ec2types.Instance{InstanceId: aws.String(id), State: &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning}}
	if name != "" {
		inst.Tags = []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String(name)}}
	}
	return inst
}

func TestAWSListInstancesStopsAtCap(t *testing.T) {
	ec2c := &fakeEC2{pages: [][]ec2types.Instance{
		{instance("i-1", "web"), instance("i-2", "")},
		{instance("i-3", "db"), instance("i-4", "")},
		{instance("i-5", "")},
	}}
	p := NewAWSProviderFromClients("eu-west-1", ec2c, &fakeCloudWatch{}, fakeSTS{})

	got, err := p.ListInstances(context.Background(), InstanceFilter{TagKey: "env", TagValue: "prod", OnlyRunning: true, MaxInstances: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Name != "web" || got[1].Name != "" || got[2].ID != "i-3" || got[0].Region != "eu-west-1" {
		t.Fatalf("unexpected instances: %+v", got)
	}
	if ec2c.calls != 2 {
		t.Fatalf("pages fetched = %d, want 2", ec2c.calls)
	}

	var names []string
	for _, f := range ec2c.inputs[0].Filters {
		names = append(names, aws.ToString(f.Name)+"="+f.Values[0])
	}
	if diff := cmp.Diff([]string{"instance-state-name=running", "tag:env=prod"}, names); diff != "" {
		t.Fatalf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestAWSListInstancesIgnoresHalfTag(t *testing.T) {
	ec2c := &fakeEC2{pages: [][]ec2types.Instance{{instance("i-1", "")}}}
	p := NewAWSProviderFromClients("us-east-1", ec2c, &fakeCloudWatch{}, fakeSTS{})
	if _, err := p.ListInstances(context.Background(), InstanceFilter{TagKey: "env", OnlyRunning: true}); err != nil {
		t.Fatal(err)
	}
	if n := len(ec2c.inputs[0].Filters); n != 1 {
		t.Fatalf("filters = %d, want state filter only", n)
	}
}

func TestAWSListInstancesError(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "denied"}
	p := NewAWSProviderFromClients("us-east-1", &fakeEC2{err: apiErr}, &fakeCloudWatch{}, fakeSTS{})
	got, err := p.ListInstances(context.Background(), InstanceFilter{OnlyRunning: true})
	if err == nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
	if code := ErrorCode(err); code != "UnauthorizedOperation" {
		t.Fatalf("ErrorCode() = %q", code)
	}
}

func TestAWSQueryMetric(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cw := &fakeCloudWatch{datapoints: []cwtypes.Datapoint{
		{Timestamp: aws.Time(ts), Average: aws.Float64(42)},
		{Timestamp: aws.Time(ts.Add(time.Minute))},
	}}
	p := NewAWSProviderFromClients("us-east-1", &fakeEC2{}, cw, fakeSTS{})

	got, err := p.QueryMetric(context.Background(), MetricQuery{
		Namespace:  "AWS/EC2",
		MetricName: "CPUUtilization",
		Dimensions: []Dimension{{Name: "InstanceId", Value: "i-1"}},
		Start:      ts.Add(-10 * time.Minute),
		End:        ts,
		Period:     time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []Datapoint{{Timestamp: ts, Value: 42, Valid: true}, {Timestamp: ts.Add(time.Minute)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("datapoints mismatch (-want +got):\n%s", diff)
	}
	in := cw.statsInputs[0]
	if aws.ToInt32(in.Period) != 60 || in.Statistics[0] != cwtypes.StatisticAverage {
		t.Fatalf("unexpected input: period=%d stats=%v", aws.ToInt32(in.Period), in.Statistics)
	}
}

func TestAWSListDimensionSetsCap(t *testing.T) {
	metric := func(path string) cwtypes.Metric {
		return cwtypes.Metric{Dimensions: []cwtypes.Dimension{
			{Name: aws.String("InstanceId"), Value: aws.String("i-1")},
			{Name: aws.String("path"), Value: aws.String(path)},
		}}
	}
	other := cwtypes.Metric{Dimensions: []cwtypes.Dimension{{Name: aws.String("InstanceId"), Value: aws.String("i-2")}}}
	cw := &fakeCloudWatch{metrics: [][]cwtypes.Metric{
		{metric("/"), other},
		{metric("/data"), metric("/var")},
		{metric("/tmp")},
	}}
	p := NewAWSProviderFromClients("us-east-1", &fakeEC2{}, cw, fakeSTS{})

	sets, err := p.ListDimensionSets(context.Background(), "CWAgent", "disk_used_percent",
		[]Dimension{{Name: "InstanceId", Value: "i-1"}}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 2 || sets[1][1].Value != "/data" {
		t.Fatalf("unexpected sets: %+v", sets)
	}
	if cw.listCalls != 2 {
		t.Fatalf("catalog pages = %d, want 2", cw.listCalls)
	}
}

func TestAWSAccount(t *testing.T) {
	p := NewAWSProviderFromClients("us-east-1", &fakeEC2{}, &fakeCloudWatch{}, fakeSTS{account: "123456789012"})
	if got := p.Account(context.Background()); got != "AWS 123456789012" {
		t.Fatalf("Account() = %q", got)
	}
	p = NewAWSProviderFromClients("us-east-1", &fakeEC2{}, &fakeCloudWatch{}, fakeSTS{err: errors.New("no creds")})
	if got := p.Account(context.Background()); got != "AWS unknown" {
		t.Fatalf("Account() = %q", got)
	}
}

func TestAWSConsoleLink(t *testing.T) {
	p := NewAWSProviderFromClients("", nil, nil, nil)
	want := "https://eu-west-1.console.aws.amazon.com/ec2/home?region=eu-west-1#InstanceDetails:instanceId=i-abc"
	if got := p.ConsoleLink("eu-west-1", "i-abc"); got != want {
		t.Fatalf("ConsoleLink() = %q", got)
	}
}

func TestMetricSourceDimensions(t *testing.T) {
	src := MetricSource{InstanceDimension: "id", Fixed: []Dimension{{Name: "state", Value: "used"}}}
	want := []Dimension{{Name: "id", Value: "vm-1"}, {Name: "state", Value: "used"}}
	if diff := cmp.Diff(want, src.Dimensions("vm-1")); diff != "" {
		t.Fatalf("Dimensions mismatch (-want +got):\n%s", diff)
	}
}
