// Package kms wraps the AWS KMS client used to sign with keys that never leave KMS.
package kms

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	kmslib "github.com/aws/aws-sdk-go/service/kms"
)

// Client is the subset of the KMS API needed to derive an address and sign digests.
type Client interface {
	GetPublicKey(input *kmslib.GetPublicKeyInput) (*kmslib.GetPublicKeyOutput, error)
	Sign(input *kmslib.SignInput) (*kmslib.SignOutput, error)
}

var _ Client = (*kmslib.KMS)(nil)

// ClientConfig holds the KMS key location and the credentials profile.
type ClientConfig struct {
	KeyID     string
	KeyRegion string
	// AWSProfile selects a shared credentials profile. Empty uses the environment.
	AWSProfile string
}

func (c ClientConfig) validate() error {
	var errs []error
	if c.KeyID == "" {
		errs = append(errs, errors.New("KMS key ID is required"))
	}
	if c.KeyRegion == "" {
		errs = append(errs, errors.New("KMS key region is required"))
	}

	return errors.Join(errs...)
}

// NewClient creates a KMS client for the configured region and profile.
func NewClient(config ClientConfig) (Client, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid KMS config: %w", err)
	}

	awsConfig := aws.Config{Region: aws.String(config.KeyRegion)}
	if config.AWSProfile != "" {
		awsConfig.Credentials = credentials.NewSharedCredentials("", config.AWSProfile)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            awsConfig,
		SharedConfigState: session.SharedConfigDisable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return kmslib.New(sess), nil
}

// SPKI is the SubjectPublicKeyInfo structure KMS returns public keys in.
type SPKI struct {
	AlgorithmIdentifier pkix.AlgorithmIdentifier
	SubjectPublicKey    asn1.BitString
}

// ECDSASig is the DER structure of a KMS ECDSA signature.
type ECDSASig struct {
	R asn1.RawValue
	S asn1.RawValue
}
