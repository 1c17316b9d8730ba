package cfsign

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
)

// parsePrivateKey decodes an RSA private key in PKCS#1, PKCS#8 or OpenSSH
// PEM form, optionally encrypted with passphrase. pemData is wiped before
// returning.
func parsePrivateKey(pemData []byte, passphrase string) (*rsa.PrivateKey, error) {
	defer common.WipeByteArray(pemData)

	raw, err := ssh.ParseRawPrivateKey(pemData)

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && passphrase != "" {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(pemData, []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w: %w", common.ErrSigning, err)
	}

	switch k := raw.(type) {
	case *rsa.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("private key is %T, CloudFront requires RSA: %w", raw, common.ErrSigning)
	}
}

// normalizePEM restores line breaks in PEM text that was flattened into a
// single line with literal \n sequences, as is common for environment
// variables.
func normalizePEM(s string) []byte {
	if !strings.Contains(s, "\n") && strings.Contains(s, `\n`) {
		s = strings.ReplaceAll(s, `\n`, "\n")
	}
	return []byte(strings.TrimSpace(s) + "\n")
}
