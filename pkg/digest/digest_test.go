package digest

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOperator  = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testAVS       = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testDirectory = common.HexToAddress("0x0000000000000000000000000000000000000abc")
	testSalt      = [32]byte(bytes.Repeat([]byte{0x11}, 32))
	testExpiry    = big.NewInt(1700000000)
)

func TestBuildTaskDigest_FixedVectors(t *testing.T) {
	tests := []struct {
		message  string
		expected string
	}{
		{"true", "0x6273151f959616268004b58dbb21e5c851b7b8d04498b4aabee12291d22fc034"},
		{"false", "0xba9154e0baa69c78e0ca563b867df81bae9d177c4ea1452c35c84386a70f0f7a"},
		{"", "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, common.HexToHash(tt.expected), BuildTaskDigest(tt.message))
			assert.Equal(t, BuildTaskDigest(tt.message), BuildTaskDigest(tt.message))
		})
	}
}

func TestTypehashes_MatchContractConstants(t *testing.T) {
	assert.Equal(t, common.HexToHash("0xda2c89bafdd34776a2b8bb9c83c82f419e20cc8c67207f70edd58249b92661bd"), OperatorAVSRegistrationTypehash)
	assert.Equal(t, common.HexToHash("0x8cad95687ba82c2ce50e74f7b754645e5117c3a5bec8151c0726d5857980a866"), DomainTypehash)
}

func TestBuildRegistrationStructHash_FixedVector(t *testing.T) {
	hash, err := BuildRegistrationStructHash(testOperator, testAVS, testSalt, testExpiry)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x1d7ba25300aa4afb8101eae0b58d03703a55ee32edb53fab5b8cdfbb3f0d5ec4"), hash)
}

func TestRegistrationDomain_BuildRegistrationDigest_FixedVector(t *testing.T) {
	domain := RegistrationDomain{ChainID: big.NewInt(31337), Directory: testDirectory}

	separator, err := domain.Separator()
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x2157dfcc65c2a1bf4910f6151ef4a1f16e71967f32888d0e6c59cd71910c1c6a"), separator)

	digest, err := domain.BuildRegistrationDigest(testOperator, testAVS, testSalt, testExpiry)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x1b39cf837e60a52adb85a72bf2149c62970e7fc2cc78e4ceac05b27a9b290b92"), digest)

	again, err := domain.BuildRegistrationDigest(testOperator, testAVS, testSalt, testExpiry)
	require.NoError(t, err)
	assert.Equal(t, digest, again)
}

func TestRegistrationDomain_BuildRegistrationDigest_InputsChangeDigest(t *testing.T) {
	domain := RegistrationDomain{ChainID: big.NewInt(31337), Directory: testDirectory}
	base, err := domain.BuildRegistrationDigest(testOperator, testAVS, testSalt, testExpiry)
	require.NoError(t, err)

	otherSalt := testSalt
	otherSalt[0] = 0x12
	withSalt, err := domain.BuildRegistrationDigest(testOperator, testAVS, otherSalt, testExpiry)
	require.NoError(t, err)
	withExpiry, err := domain.BuildRegistrationDigest(testOperator, testAVS, testSalt, big.NewInt(1700000001))
	require.NoError(t, err)
	otherChain, err := RegistrationDomain{ChainID: big.NewInt(1), Directory: testDirectory}.
		BuildRegistrationDigest(testOperator, testAVS, testSalt, testExpiry)
	require.NoError(t, err)

	assert.NotEqual(t, base, withSalt)
	assert.NotEqual(t, base, withExpiry)
	assert.NotEqual(t, base, otherChain)
}

func TestRegistrationDomain_InvalidInputs_ReturnError(t *testing.T) {
	_, err := RegistrationDomain{Directory: testDirectory}.Separator()
	assert.Error(t, err)

	_, err = BuildRegistrationStructHash(testOperator, testAVS, testSalt, nil)
	assert.Error(t, err)
	_, err = BuildRegistrationStructHash(testOperator, testAVS, testSalt, big.NewInt(-1))
	assert.Error(t, err)
}

func TestSignedEnvelope_Encode_FixedLayout(t *testing.T) {
	sig := bytes.Repeat([]byte{0x22}, 65)
	env := NewSingleEnvelope(testOperator, sig, 999)

	encoded, err := env.Encode()
	require.NoError(t, err)

	expected := "" +
		"0000000000000000000000000000000000000000000000000000000000000060" + // operators offset
		"00000000000000000000000000000000000000000000000000000000000000a0" + // signatures offset
		"00000000000000000000000000000000000000000000000000000000000003e7" + // reference block 999
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"000000000000000000000000f39fd6e51aad88f6f4ce6ab8827279cfffb92266" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000041" +
		"2222222222222222222222222222222222222222222222222222222222222222" +
		"2222222222222222222222222222222222222222222222222222222222222222" +
		"2200000000000000000000000000000000000000000000000000000000000000"

	assert.Equal(t, expected, hex.EncodeToString(encoded))
	assert.Len(t, encoded, 352)
}

func TestSignedEnvelope_DecodeEnvelope_RecoversFields(t *testing.T) {
	second := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	env := &SignedEnvelope{
		Operators:      []common.Address{testOperator, second},
		Signatures:     [][]byte{bytes.Repeat([]byte{0x01}, 65), bytes.Repeat([]byte{0x02}, 65)},
		ReferenceBlock: 12345,
	}
	encoded, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(encoded)
	require.NoError(t, err)
	assert.Equal(t, env.Operators, decoded.Operators)
	assert.Equal(t, env.Signatures, decoded.Signatures)
	assert.Equal(t, uint32(12345), decoded.ReferenceBlock)
}

func TestSignedEnvelope_Encode_MismatchedLengths_ReturnsError(t *testing.T) {
	tests := []struct {
		name string
		env  *SignedEnvelope
	}{
		{"no operators", &SignedEnvelope{}},
		{"more operators than signatures", &SignedEnvelope{
			Operators:  []common.Address{testOperator, testAVS},
			Signatures: [][]byte{{0x01}},
		}},
		{"empty signature", &SignedEnvelope{
			Operators:  []common.Address{testOperator},
			Signatures: [][]byte{{}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.env.Encode()
			assert.Error(t, err)
		})
	}
}

func TestDecodeEnvelope_Garbage_ReturnsError(t *testing.T) {
	_, err := DecodeEnvelope([]byte{0x01, 0x02})
	assert.Error(t, err)
}
