package provider

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go/aws"
	kmslib "github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/encrypted-lottery/lottery-deployments/chain/internal/kms"
)

// KMSSigner signs transactions and EIP-712 digests with a secp256k1 key held in AWS KMS.
type KMSSigner struct {
	client kms.Client
	keyID  string

	pubKey *ecdsa.PublicKey
}

// NewKMSSigner creates a KMSSigner for keyID. An empty awsProfile uses the environment
// credentials.
func NewKMSSigner(keyID, keyRegion, awsProfile string) (*KMSSigner, error) {
	client, err := kms.NewClient(kms.ClientConfig{
		KeyID:      keyID,
		KeyRegion:  keyRegion,
		AWSProfile: awsProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KMS client: %w", err)
	}

	return newKMSSignerWithClient(client, keyID), nil
}

func newKMSSignerWithClient(client kms.Client, keyID string) *KMSSigner {
	return &KMSSigner{client: client, keyID: keyID}
}

// PublicKey fetches the key's public key from KMS once and caches it.
func (s *KMSSigner) PublicKey() (*ecdsa.PublicKey, error) {
	if s.pubKey != nil {
		return s.pubKey, nil
	}

	out, err := s.client.GetPublicKey(&kmslib.GetPublicKeyInput{KeyId: aws.String(s.keyID)})
	if err != nil {
		return nil, fmt.Errorf("cannot get public key from KMS for KeyId=%s: %w", s.keyID, err)
	}

	var spki kms.SPKI
	if _, err = asn1.Unmarshal(out.PublicKey, &spki); err != nil {
		return nil, fmt.Errorf("cannot parse asn1 public key for KeyId=%s: %w", s.keyID, err)
	}

	pubKey, err := crypto.UnmarshalPubkey(spki.SubjectPublicKey.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cannot unmarshal public key bytes: %w", err)
	}
	s.pubKey = pubKey

	return pubKey, nil
}

// Address returns the account address of the KMS key.
func (s *KMSSigner) Address() (common.Address, error) {
	pubKey, err := s.PublicKey()
	if err != nil {
		return common.Address{}, err
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// SignHash signs a 32 byte digest and returns a [R || S || V] signature with V in {0, 1}.
func (s *KMSSigner) SignHash(hash []byte) ([]byte, error) {
	pubKey, err := s.PublicKey()
	if err != nil {
		return nil, err
	}

	out, err := s.client.Sign(&kmslib.SignInput{
		KeyId:            aws.String(s.keyID),
		SigningAlgorithm: aws.String(kmslib.SigningAlgorithmSpecEcdsaSha256),
		MessageType:      aws.String(kmslib.MessageTypeDigest),
		Message:          hash,
	})
	if err != nil {
		return nil, fmt.Errorf("call to kms.Sign() failed: %w", err)
	}

	return kmsToEVMSig(out.Signature, crypto.FromECDSAPub(pubKey), hash)
}

// TransactOpts returns transact options that sign through KMS.
func (s *KMSSigner) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}

	from, err := s.Address()
	if err != nil {
		return nil, err
	}
	signer := types.LatestSignerForChainID(chainID)

	return &bind.TransactOpts{
		From:    from,
		Context: ctx,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != from {
				return nil, bind.ErrNotAuthorized
			}

			sig, serr := s.SignHash(signer.Hash(tx).Bytes())
			if serr != nil {
				return nil, fmt.Errorf("failed to sign transaction: %w", serr)
			}

			return tx.WithSignature(signer, sig)
		},
	}, nil
}

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Div(secp256k1N, big.NewInt(2))
)

// kmsToEVMSig converts a DER encoded KMS signature into an EVM signature, normalizing S to the
// lower half of the curve order and finding the recovery id that yields pubKey.
func kmsToEVMSig(kmsSig, pubKey, hash []byte) ([]byte, error) {
	var sig kms.ECDSASig
	if _, err := asn1.Unmarshal(kmsSig, &sig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal KMS signature: %w", err)
	}

	sValue := new(big.Int).SetBytes(sig.S.Bytes)
	if sValue.Cmp(secp256k1HalfN) > 0 {
		sValue.Sub(secp256k1N, sValue)
	}

	rs := make([]byte, 64)
	r := bytes.TrimLeft(sig.R.Bytes, "\x00")
	if len(r) > 32 {
		return nil, fmt.Errorf("invalid R length %d", len(r))
	}
	copy(rs[32-len(r):32], r)
	sValue.FillBytes(rs[32:])

	for _, v := range []byte{0, 1} {
		candidate := append(bytes.Clone(rs), v)
		recovered, err := crypto.Ecrecover(hash, candidate)
		if err == nil && bytes.Equal(recovered, pubKey) {
			return candidate, nil
		}
	}

	return nil, errors.New("cannot reconstruct public key from sig")
}
