package tracker

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/PatrickEleganceGroup/issuerelay/internal/config"
)

// authScheme selects how Credentials turn into an Authorization header.
type authScheme int

const (
	schemeBasicPair authScheme = iota // base64(email:token)
	schemePreEncoded                  // caller supplies the encoded basic value
	schemeBearer
)

// Credentials holds one tracker authorization secret. The zero value is not
// usable; construct via BasicPair, PreEncoded or Bearer.
type Credentials struct {
	scheme authScheme
	email  string
	token  string
}

// BasicPair builds credentials from an account email and API token.
func BasicPair(email, token string) Credentials {
	return Credentials{scheme: schemeBasicPair, email: email, token: token}
}

// PreEncoded builds credentials from an already base64-encoded basic value,
// used verbatim after "Basic ".
func PreEncoded(token string) Credentials {
	return Credentials{scheme: schemePreEncoded, token: token}
}

// Bearer builds bearer-token credentials for the admin endpoints.
func Bearer(token string) Credentials {
	return Credentials{scheme: schemeBearer, token: token}
}

// FromConfig picks the credential form the environment supplied. A basic pair
// wins over a pre-encoded token when both are present.
func FromConfig(t config.Tracker) (Credentials, error) {
	switch {
	case t.Email != "" && t.APIToken != "":
		return BasicPair(t.Email, t.APIToken), nil
	case t.BasicToken != "":
		return PreEncoded(t.BasicToken), nil
	default:
		return Credentials{}, errors.New("no tracker credentials configured")
	}
}

// AuthorizationHeader returns the exact Authorization header value for these
// credentials. Deterministic: same credentials, same header.
func (c Credentials) AuthorizationHeader() string {
	switch c.scheme {
	case schemeBasicPair:
		encoded := base64.StdEncoding.EncodeToString([]byte(c.email + ":" + c.token))
		return "Basic " + encoded
	case schemePreEncoded:
		return "Basic " + c.token
	case schemeBearer:
		return "Bearer " + c.token
	default:
		return ""
	}
}

// Empty reports whether no secret is present.
func (c Credentials) Empty() bool {
	return c.token == ""
}

// String intentionally hides the secret so credentials can never leak through
// formatted logs or error messages.
func (c Credentials) String() string {
	return fmt.Sprintf("tracker.Credentials{scheme:%d}", c.scheme)
}
