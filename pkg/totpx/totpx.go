// Package totpx wraps TOTP secret provisioning and code verification for the
// panel's second authentication factor.
package totpx

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the TOTP time-step in seconds.
	Period = 30

	// Skew is how many time-steps either side of now a code is accepted,
	// to tolerate client clock drift. Codes are NOT single-use within the
	// window; replay inside a step is accepted (known, documented weakness).
	Skew = 1

	// secretSize is the raw secret length in bytes (160 bits before base32).
	secretSize = 20

	qrImageSize = 256
)

// Enrollment is handed to the user exactly once during 2FA setup.
type Enrollment struct {
	Secret string // base32, for manual transcription
	URI    string // otpauth:// provisioning URI
	Image  string // PNG QR code as a data URI
}

// Provisioner builds enrollments and verifies codes for one issuing service.
type Provisioner struct {
	Issuer string
}

// NewEnrollment generates a fresh secret for the account and renders the
// provisioning URI plus a QR image for authenticator apps.
func (p *Provisioner) NewEnrollment(account string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.Issuer,
		AccountName: account,
		Period:      Period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("totpx: generate key: %w", err)
	}

	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		return Enrollment{}, fmt.Errorf("totpx: render qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Enrollment{}, fmt.Errorf("totpx: encode qr: %w", err)
	}

	return Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
		Image:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// VerifyCode checks code against the secret for the step containing now,
// accepting Skew steps either side.
func VerifyCode(secret, code string, now time.Time) bool {
	if secret == "" || code == "" {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// CodeAt computes the expected code for the step containing t. Test helper
// and enrollment-preview use only; verification goes through VerifyCode.
func CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, totp.ValidateOpts{
		Period:    Period,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
