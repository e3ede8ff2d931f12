package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*S3Options)(nil)

// S3Options configures access to the firmware artifact store for update
// commands whose source URL uses the s3:// scheme.
type S3Options struct {
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `json:"access-key-id" mapstructure:"access-key-id"`
	SecretAccessKey string `json:"secret-access-key" mapstructure:"secret-access-key"`
	UseSSL          bool   `json:"use-ssl" mapstructure:"use-ssl"`
	Region          string `json:"region" mapstructure:"region"`
}

func NewS3Options() *S3Options {
	return &S3Options{
		Endpoint: "s3.amazonaws.com",
		UseSSL:   true,
		Region:   "us-east-1",
	}
}

func (o *S3Options) Validate() []error {
	return nil
}

func (o *S3Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Endpoint, "s3.endpoint", o.Endpoint, "S3 service endpoint (e.g. s3.amazonaws.com or minio.local)")
	fs.StringVar(&o.AccessKeyID, "s3.access-key-id", o.AccessKeyID, "S3 access key ID")
	fs.StringVar(&o.SecretAccessKey, "s3.secret-access-key", o.SecretAccessKey, "S3 secret access key")
	fs.BoolVar(&o.UseSSL, "s3.use-ssl", o.UseSSL, "Enable SSL for the S3 connection")
	fs.StringVar(&o.Region, "s3.region", o.Region, "S3 region")
}
