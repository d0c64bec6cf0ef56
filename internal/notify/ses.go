package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends mail through Amazon SES.
type SESMailer struct {
	client SESAPI
}

func NewSESMailer(cfg aws.Config) *SESMailer {
	return &SESMailer{client: ses.NewFromConfig(cfg)}
}

func NewSESMailerFromClient(client SESAPI) *SESMailer {
	return &SESMailer{client: client}
}

func (s *SESMailer) Send(ctx context.Context, m Mail) (string, error) {
	dest := &types.Destination{ToAddresses: m.To}
	if len(m.CC) > 0 {
		dest.CcAddresses = m.CC
	}
	if len(m.BCC) > 0 {
		dest.BccAddresses = m.BCC
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.From),
		Destination: dest,
		Message: &types.Message{
			Subject: utf8(m.Subject),
			Body: &types.Body{
				Text: utf8(m.Text),
				Html: utf8(m.HTML),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func utf8(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}
