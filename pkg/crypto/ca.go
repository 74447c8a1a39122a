package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

var (
	notBefore = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	notAfter  = time.Date(2063, 4, 5, 11, 0, 0, 0, time.UTC)
)

// newCA derives a CA from key. Every field is a function of key, so two
// processes sharing the key build byte-identical CA certificates.
func newCA(key string) (ed25519.PrivateKey, *x509.Certificate, error) {
	sum := sha512.Sum512([]byte("netpump-ca:" + key))
	priv := ed25519.NewKeyFromSeed(sum[:ed25519.SeedSize])

	tmpl := x509.Certificate{
		SerialNumber: new(big.Int).SetBytes(sum[32:40]),
		Subject: pkix.Name{
			CommonName:   "netpump " + hex.EncodeToString(sum[40:48]),
			Organization: []string{"netpump"},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, priv.Public(), priv)
	if err != nil {
		return nil, nil, fmt.Errorf("creating CA certificate: %s", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("x509.ParseCertificate(ca): %s", err)
	}
	return priv, cert, nil
}

// newLeaf creates a random P256 key and a certificate for it signed by the CA.
func newLeaf(caKey ed25519.PrivateKey, caCert *x509.Certificate) (tls.Certificate, error) {
	var out tls.Certificate

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return out, fmt.Errorf("ecdsa.GenerateKey(): %s", err)
	}

	cn, err := RandomString(8)
	if err != nil {
		return out, fmt.Errorf("generating random common name: %s", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return out, fmt.Errorf("generating serial number: %s", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, caCert, &key.PublicKey, caKey)
	if err != nil {
		return out, fmt.Errorf("creating leaf certificate: %s", err)
	}

	out = tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
	return out, nil
}
