// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Dotted keys are the toml tags joined by ".". Dashes are accepted in
// place of underscores, so "storage.redis-db" names storage.redis_db.

// GetAllKeys returns every settable key in declaration order.
func GetAllKeys() []string {
	var keys []string
	walkKeys(reflect.TypeOf(Config{}), "", func(key string, _ reflect.StructField) {
		keys = append(keys, key)
	})
	return keys
}

// IsSecretKey reports whether key holds a credential that must be
// redacted from output.
func IsSecretKey(key string) bool {
	secret := false
	walkKeys(reflect.TypeOf(Config{}), "", func(k string, f reflect.StructField) {
		if strings.EqualFold(k, key) && f.Tag.Get("secret") == "true" {
			secret = true
		}
	})
	return secret
}

func walkKeys(t reflect.Type, prefix string, fn func(string, reflect.StructField)) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := prefix + tagName(f)
		if f.Type.Kind() == reflect.Struct {
			walkKeys(f.Type, key+".", fn)
			continue
		}
		fn(key, f)
	}
}

func tagName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

// Get returns the value at a dotted key.
func (c *Config) Get(key string) (any, error) {
	field, err := c.resolve(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a dotted key. Strings are parsed into int and bool fields,
// other values must be assignable or convertible.
func (c *Config) Set(key string, value any) error {
	field, err := c.resolve(key)
	if err != nil {
		return err
	}
	return assign(field, value)
}

func (c *Config) resolve(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	v := reflect.ValueOf(c).Elem()
	parts := strings.Split(key, ".")
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		want := strings.ReplaceAll(part, "-", "_")
		next := reflect.Value{}
		for j := 0; j < v.NumField(); j++ {
			if strings.EqualFold(tagName(v.Type().Field(j)), want) {
				next = v.Field(j)
				break
			}
		}
		if !next.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = next
	}
	if v.Kind() == reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%s is a section, not a value", key)
	}
	return v, nil
}

func assign(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value %q", s)
			}
			field.SetInt(n)
			return nil
		case reflect.Bool:
			b, err := parseSwitch(s)
			if err != nil {
				return err
			}
			field.SetBool(b)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	switch {
	case !val.IsValid():
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	case val.Type().AssignableTo(field.Type()):
		field.Set(val)
	case val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String:
		field.Set(val.Convert(field.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, field.Type())
	}
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}
