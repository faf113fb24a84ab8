package provider

import (
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	kmslib "github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/encrypted-lottery/lottery-deployments/chain/internal/kms"
)

// testMnemonic is the well known development mnemonic.
const testMnemonic = "test test test test test test test test test test test junk"

var (
	testChainID = big.NewInt(1337)

	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1      = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// newFakeRPCServer returns an RPC server that answers every request with block number 1.
func newFakeRPCServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
	}))
	t.Cleanup(srv.Close)

	return srv
}

// fakeKMSClient implements kms.Client with a local key, answering in the KMS wire formats.
type fakeKMSClient struct {
	key *ecdsa.PrivateKey
	// highS returns the non-canonical S value, as KMS does for about half of its signatures.
	highS bool

	pubKeyErr error
	signErr   error
	signCalls int
}

var _ kms.Client = (*fakeKMSClient)(nil)

func newFakeKMSClient(t *testing.T) *fakeKMSClient {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &fakeKMSClient{key: key}
}

func (c *fakeKMSClient) GetPublicKey(*kmslib.GetPublicKeyInput) (*kmslib.GetPublicKeyOutput, error) {
	if c.pubKeyErr != nil {
		return nil, c.pubKeyErr
	}

	params, err := asn1.Marshal(oidSecp256k1)
	if err != nil {
		return nil, err
	}
	pub := crypto.FromECDSAPub(&c.key.PublicKey)
	der, err := asn1.Marshal(kms.SPKI{
		AlgorithmIdentifier: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		SubjectPublicKey: asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	if err != nil {
		return nil, err
	}

	return &kmslib.GetPublicKeyOutput{PublicKey: der}, nil
}

func (c *fakeKMSClient) Sign(input *kmslib.SignInput) (*kmslib.SignOutput, error) {
	c.signCalls++
	if c.signErr != nil {
		return nil, c.signErr
	}

	sig, err := crypto.Sign(input.Message, c.key)
	if err != nil {
		return nil, err
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if c.highS {
		s.Sub(secp256k1N, s)
	}

	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		return nil, err
	}

	return &kmslib.SignOutput{Signature: der}, nil
}
