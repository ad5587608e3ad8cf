package svc

import (
	"crypto/subtle"
	"log/slog"
)

// buildToken is injected at link time:
//
//	go build -ldflags "-X github.com/1broseidon/panewm/internal/svc.buildToken=..."
var buildToken = ""

const devToken = "panewm-development-token"

// Token is the shared secret authenticating daemon requests to the service.
// Its String and LogValue never reveal the secret.
type Token string

// BuildToken returns the token compiled into this binary, or a fixed
// development token for unstamped builds.
func BuildToken() Token {
	if buildToken == "" {
		return Token(devToken)
	}
	return Token(buildToken)
}

// Equal compares in constant time.
func (t Token) Equal(other Token) bool {
	return subtle.ConstantTimeCompare([]byte(t), []byte(other)) == 1
}

func (t Token) String() string {
	return "[redacted]"
}

// LogValue implements slog.LogValuer.
func (t Token) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}

// GoString keeps %#v from printing the secret.
func (t Token) GoString() string {
	return `svc.Token("[redacted]")`
}
