package filestore

import (
	"github.com/koustreak/xetra/internal/errs"
)

// CredentialRef names where the access key and secret come from,
// typically environment variable names. It never holds the secrets.
type CredentialRef struct {
	AccessKeyEnv string
	SecretKeyEnv string
}

// Credentials are resolved secret values.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// String keeps credential material out of logs and %v output. Only the
// last four characters of a long access key are shown.
func (c Credentials) String() string {
	if c.AccessKey == "" && c.SecretKey == "" {
		return "Credentials{}"
	}
	return "Credentials{AccessKey: " + maskKey(c.AccessKey) + ", SecretKey: ***}"
}

// GoString covers %#v, which bypasses String.
func (c Credentials) GoString() string { return c.String() }

func maskKey(k string) string {
	const shown = 4
	if len(k) <= 2*shown {
		return "***"
	}
	return "***" + k[len(k)-shown:]
}

// LookupFunc resolves a name to a value. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// Resolve looks up both entries. A missing or empty entry is a config error
// naming the entry.
func (r CredentialRef) Resolve(lookup LookupFunc) (Credentials, error) {
	if r.AccessKeyEnv == "" || r.SecretKeyEnv == "" {
		return Credentials{}, errs.New(errs.ErrKindConfig, "credential reference is incomplete")
	}
	access, ok := lookup(r.AccessKeyEnv)
	if !ok || access == "" {
		return Credentials{}, errs.New(errs.ErrKindConfig, "access key entry is not set").WithSubject(r.AccessKeyEnv)
	}
	secret, ok := lookup(r.SecretKeyEnv)
	if !ok || secret == "" {
		return Credentials{}, errs.New(errs.ErrKindConfig, "secret key entry is not set").WithSubject(r.SecretKeyEnv)
	}
	return Credentials{AccessKey: access, SecretKey: secret}, nil
}
