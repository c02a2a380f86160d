// Package tlscheck verifies the TLS posture of a landing URL. Unlike the
// generative stages this one fails conservative: when the certificate cannot
// be verified the stage keeps its penalty, because a broken TLS setup is
// itself a signal.
package tlscheck

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/safelens/safelens/internal/model"
)

const stageName = "certificate validation"

// Verifier performs a TLS handshake against the landing host and grades the
// presented certificate.
type Verifier struct {
	cfg model.CertConfig
}

// NewVerifier creates a certificate verifier.
func NewVerifier(cfg model.CertConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify grades the certificate of rawURL. Plain HTTP, expired certificates
// and failed verification all keep the configured penalties; an OV
// certificate earns its bonus as a negative penalty.
func (v *Verifier) Verify(ctx context.Context, rawURL string) model.StageResult {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return v.warning(v.cfg.InvalidPenalty, fmt.Sprintf("certificate check failed: unusable URL %q", rawURL), nil)
	}

	if parsed.Scheme != "https" {
		return model.StageResult{
			ID:      model.StageCert,
			Name:    stageName,
			Status:  model.StatusWarning,
			Penalty: v.cfg.NoTLSPenalty,
			Message: "insecure HTTP connection",
			Meta:    map[string]interface{}{"has_tls": false},
		}
	}

	host := parsed.Hostname()
	port := parsed.Port()
	if port == "" {
		port = "443"
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: v.cfg.Timeout},
		Config:    &tls.Config{ServerName: host},
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		if isExpiredError(err) {
			return v.warning(v.cfg.InvalidPenalty, "certificate has expired", map[string]interface{}{
				"has_tls": true,
				"valid":   false,
			})
		}
		return v.warning(v.cfg.InvalidPenalty, fmt.Sprintf("certificate verification failed: %v", err), map[string]interface{}{
			"has_tls": true,
			"valid":   false,
		})
	}
	defer func() { _ = conn.Close() }()

	tlsConn := conn.(*tls.Conn)
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return v.warning(v.cfg.InvalidPenalty, "no certificate presented", nil)
	}
	cert := certs[0]

	if time.Now().After(cert.NotAfter) {
		return v.warning(v.cfg.InvalidPenalty, "certificate has expired", map[string]interface{}{
			"has_tls": true,
			"valid":   false,
			"expiry":  cert.NotAfter,
		})
	}

	certType, bonus := Classify(cert, v.cfg)
	issuer := cert.Issuer.CommonName

	return model.StageResult{
		ID:      model.StageCert,
		Name:    stageName,
		Status:  model.StatusSafe,
		Penalty: -bonus,
		Message: fmt.Sprintf("valid %s certificate (issuer: %s)", certType, issuer),
		Meta: map[string]interface{}{
			"has_tls":   true,
			"valid":     true,
			"cert_type": certType,
			"issuer":    issuer,
			"expiry":    cert.NotAfter,
		},
	}
}

// Classify grades a verified certificate. An organization in the subject
// marks OV. EV detection would need the issuer policy OID list and is not
// performed, so the EV bonus stays unused.
func Classify(cert *x509.Certificate, cfg model.CertConfig) (string, int) {
	if len(cert.Subject.Organization) > 0 && cert.Subject.Organization[0] != "" {
		return "OV", cfg.OVBonus
	}
	return "DV", 0
}

func (v *Verifier) warning(penalty int, message string, meta map[string]interface{}) model.StageResult {
	return model.StageResult{
		ID:      model.StageCert,
		Name:    stageName,
		Status:  model.StatusWarning,
		Penalty: penalty,
		Message: message,
		Meta:    meta,
	}
}

func isExpiredError(err error) bool {
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		return invalid.Reason == x509.Expired
	}
	return strings.Contains(err.Error(), "expired")
}
