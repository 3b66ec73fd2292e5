package openstack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"golang.org/x/crypto/ssh"
)

// ensureKeypair makes sure the cluster keypair exists, creating it and
// saving its private key on first use. It returns the signer of the private
// key, or nil when the key is not available locally.
func (p *NodeProvider) ensureKeypair() (ssh.Signer, error) {
	path := p.config.keyPath(p.keyName)

	_, err := keypairs.Get(p.client, p.keyName, nil).Extract()
	if err == nil {
		signer, err := loadSigner(path)
		if errors.Is(err, os.ErrNotExist) {
			p.log.Warn("Private key of the cluster keypair not found", "keypair", p.keyName, "path", path)
			return nil, nil
		}
		return signer, err
	}

	var notFound gophercloud.ErrDefault404
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to get keypair '%s': %w", p.keyName, err)
	}

	keypair, err := keypairs.Create(p.client, keypairs.CreateOpts{Name: p.keyName}).Extract()
	if err != nil {
		return nil, fmt.Errorf("failed to create keypair: %w", err)
	}

	signer, err := ssh.ParsePrivateKey([]byte(keypair.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if err := saveKey(path, []byte(keypair.PrivateKey)); err != nil {
		return nil, err
	}

	p.log.Info("Created keypair", "keypair", p.keyName, "fingerprint", ssh.FingerprintSHA256(signer.PublicKey()), "path", path)
	return signer, nil
}

func loadSigner(path string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key '%s': %w", path, err)
	}
	return signer, nil
}

func saveKey(path string, pem []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, pem, 0o600); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}
	return nil
}
