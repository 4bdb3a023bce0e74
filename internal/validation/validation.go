// Package validation はリクエスト入力の検証を提供する。
// go-playground/validator のタグ検証に、ユーザー名とパスワード強度の独自ルールを加える。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/taskman/internal/model"
)

// PasswordMaxBytes はbcryptが扱えるパスワードの最大バイト長。
const PasswordMaxBytes = 72

// PasswordSpecialChars はパスワードに1文字以上含める必要がある記号の集合。
const PasswordSpecialChars = "@$!%*?&#_-^"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Validator はstructタグに基づく入力検証を行う。
type Validator struct {
	v *validator.Validate
}

// New は独自ルールを登録済みのValidatorを生成する。
//
// 独自タグ:
//   - username: 英数字とアンダースコアのみ
//   - strongpassword: 大文字・小文字・数字・記号をそれぞれ1文字以上含む
//   - bcryptlen: バイト長がPasswordMaxBytes以下
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーメッセージのフィールド名はJSONキーに合わせる
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	mustRegister(v, "bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= PasswordMaxBytes
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: failed to register %q: %v", tag, err))
	}
}

// Struct はstructを検証する。
// 制約違反の場合は最初の違反を説明するVALIDATION_ERRORのAPIErrorを返す。
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return model.NewValidationError(describe(verrs[0]))
	}
	return fmt.Errorf("failed to validate input: %w", err)
}

// IsStrongPassword はパスワードが大文字・小文字・数字・記号をそれぞれ含むかを判定する。
func IsStrongPassword(p string) bool {
	var upper, lower, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// NormalizeEmail は前後の空白を除去し小文字化する。
// 保存時と検索時の両方で同じ正規化を適用する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "username":
		return fmt.Sprintf("%s may only contain letters, numbers, and underscores", field)
	case "strongpassword":
		return fmt.Sprintf("%s must contain an uppercase letter, a lowercase letter, a digit, and one of %s",
			field, PasswordSpecialChars)
	case "bcryptlen":
		return fmt.Sprintf("%s must be at most %d bytes", field, PasswordMaxBytes)
	case "eqfield":
		return "Passwords do not match"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
