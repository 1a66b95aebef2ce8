package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"slotwatch/internal/apperr"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

// Validate checks struct tags, then every duration and date field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return apperr.New(apperr.KindConfig, "config.validate", "config is nil")
	}
	if err := structValidator().Struct(cfg); err != nil {
		return apperr.Wrap(apperr.KindConfig, "config.validate", "invalid config", describe(err))
	}
	if _, err := cfg.Resolve(); err != nil {
		return apperr.Wrap(apperr.KindConfig, "config.validate", "invalid config", err)
	}
	return nil
}

func describe(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", ns, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: failed %s", ns, fe.Tag()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}
