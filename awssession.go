package mqadapter

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
)

// SessionProviderFunc allows callers to fully customize AWS session
// construction (custom credential chains, assumed roles, local test
// endpoints). NewSession is used when Config.SessionProvider is nil.
type SessionProviderFunc func(c Config) (*session.Session, error)

type retryer struct {
	client.DefaultRetryer
	retryCount int
}

// MaxRetries defaults to 10 exponential-backoff attempts.
func (r retryer) MaxRetries() int {
	if r.retryCount > 0 {
		return r.retryCount
	}
	return 10
}

// NewSession builds the default AWS session from static credentials and the
// configured region. Endpoint overrides for local testing (LocalStack,
// ElasticMQ) are not applied here; Adapter.Start applies them per client.
func NewSession(c Config) (*session.Session, error) {
	creds := credentials.NewStaticCredentials(c.AWSAccessKeyID, c.AWSSecretAccessKey, "")
	if c.AWSAccessKeyID != "" {
		if _, err := creds.Get(); err != nil {
			return nil, ErrConfig.withDetail("invalid aws credentials").Context(err)
		}
	}

	r := &retryer{}
	cfg := request.WithRetryer(aws.NewConfig().WithRegion(c.AWSRegion).WithCredentials(creds), r)

	return session.NewSession(cfg)
}
