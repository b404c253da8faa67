// Package validate gates download requests before a job is queued: email
// shape, name and company plausibility, then the CAPTCHA.
package validate

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"catalog/internal/captcha"
	"catalog/internal/models"
	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
)

const (
	MsgEmail   = "Email inválido"
	MsgName    = "Um nome e sobrenome válido por favor"
	MsgCompany = "Uma empresa válida por favor"
	MsgCaptcha = "Falha na validação do reCAPTCHA"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,6}$`)

var placeholderCompanies = map[string]struct{}{
	"test":       {},
	"teste":      {},
	"empresa":    {},
	"example":    {},
	"demo":       {},
	"company":    {},
	"enterprise": {},
}

// Email reports whether s looks like a deliverable address.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Name requires at least two words of three or more characters, with no
// letter repeated three times in a row and more than one distinct character.
func Name(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if utf8.RuneCountInString(w) < 3 || tripleLetter(w) || !varied(w) {
			return false
		}
	}
	return true
}

// Company rejects short names, placeholders and keyboard mashing.
func Company(s string) bool {
	if utf8.RuneCountInString(s) <= 2 {
		return false
	}
	if _, ok := placeholderCompanies[strings.ToLower(s)]; ok {
		return false
	}
	return !tripleLetter(s)
}

// tripleLetter reports an ASCII letter repeated three or more times in a row.
func tripleLetter(s string) bool {
	run := 0
	var prev byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isASCIILetter(c) {
			run = 0
			continue
		}
		if run > 0 && c == prev {
			run++
		} else {
			run = 1
		}
		if run >= 3 {
			return true
		}
		prev = c
	}
	return false
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func varied(w string) bool {
	r := []rune(w)
	for _, c := range r[1:] {
		if c != r[0] {
			return true
		}
	}
	return false
}

// Validator runs the field checks and the CAPTCHA.
type Validator struct {
	verifier captcha.Verifier
	minScore float64
	action   string
	log      *logger.Logger
}

func New(verifier captcha.Verifier, minScore float64, action string, log *logger.Logger) *Validator {
	return &Validator{verifier: verifier, minScore: minScore, action: action, log: log.WithComponent("validate")}
}

// Fields checks the requester without calling the CAPTCHA service.
func (v *Validator) Fields(req models.Requester) error {
	switch {
	case !Email(req.Email):
		return errors.ValidationField("email", MsgEmail)
	case !Name(req.Username):
		return errors.ValidationField("name", MsgName)
	case !Company(req.Company):
		return errors.ValidationField("company", MsgCompany)
	}
	return nil
}

// Request validates req and then token. The first failure is returned.
// Any CAPTCHA error, including an unreachable service, is a rejection.
func (v *Validator) Request(ctx context.Context, req models.Requester, token, clientIP string) error {
	if err := v.Fields(req); err != nil {
		return err
	}

	if strings.TrimSpace(token) == "" {
		return errors.Rejected("recaptchaToken", MsgCaptcha)
	}
	res, err := v.verifier.Verify(ctx, token, clientIP)
	if err != nil {
		v.log.FromContext(ctx).Warn("captcha verification failed", "error", err.Error())
		return errors.Rejected("recaptchaToken", MsgCaptcha)
	}
	if !res.Passed(v.minScore, v.action) {
		args := []any{"error_codes", res.ErrorCodes, "action", res.Action}
		if res.Score != nil {
			args = append(args, "score", *res.Score)
		}
		v.log.FromContext(ctx).Warn("captcha rejected", args...)
		return errors.Rejected("recaptchaToken", MsgCaptcha)
	}
	return nil
}
