package mirror

import (
	"fmt"
	"strings"
)

// connErrClass identifies a family of connection failures.
type connErrClass int

const (
	errGeneric connErrClass = iota
	errRefused
	errCertificate
	errAuth
	errTimeout
	errConfig
	errNotFound
)

// connMatchers pairs lowercase substrings with a failure class. Matching is
// first-wins, so more specific patterns come before generic ones: kubeconfig
// problems before "not found", timeouts before the dial patterns they often
// embed.
var connMatchers = []struct {
	class    connErrClass
	patterns []string
}{
	{errConfig, []string{"kubeconfig", "invalid configuration", "context was not found", "does not exist", "no configuration has been provided"}},
	{errCertificate, []string{"certificate", "x509", "tls"}},
	{errAuth, []string{"unauthorized", "authentication", "401"}},
	{errTimeout, []string{"timed out", "timeout", "deadline exceeded"}},
	{errRefused, []string{"connection refused", "no such host", "no route to host", "network is unreachable", "dial tcp"}},
	{errNotFound, []string{"not found", "404"}},
}

// classifyConnError turns a raw connection failure into an actionable message
// that keeps the original error text.
func classifyConnError(contextName string, err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)
	class := errGeneric
scan:
	for _, m := range connMatchers {
		for _, p := range m.patterns {
			if strings.Contains(lower, p) {
				class = m.class
				break scan
			}
		}
	}
	switch class {
	case errRefused:
		return fmt.Sprintf("Cannot reach the cluster for context %q: %s. Check that the cluster is running and the server address is reachable.", contextName, msg)
	case errCertificate:
		return fmt.Sprintf("Certificate problem for context %q: %s. Check the certificate-authority data in your kubeconfig.", contextName, msg)
	case errAuth:
		return fmt.Sprintf("Authentication failed for context %q: %s. Check your credentials for this context.", contextName, msg)
	case errTimeout:
		return fmt.Sprintf("Connection to context %q timed out: %s. The cluster may be slow or unreachable.", contextName, msg)
	case errConfig:
		return fmt.Sprintf("Kubeconfig problem for context %q: %s. Check the context definition in your kubeconfig.", contextName, msg)
	case errNotFound:
		return fmt.Sprintf("Endpoint not found for context %q: %s. The server address may not point at a Kubernetes API.", contextName, msg)
	default:
		return fmt.Sprintf("Failed to connect to context %q: %s", contextName, msg)
	}
}
