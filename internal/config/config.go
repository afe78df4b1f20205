package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/vop2ctl/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "VOP2CTL_"

var durationType = reflect.TypeOf(time.Duration(0))

// LoadConfig fills the exported fields of *opts from the TOML file named by
// its Config field and from the environment. Precedence is CLI flag > env >
// file; fields whose flag was set on cmd are left alone.
//
// Fields opt in with tags:
//
//	Port string `toml:"server.port" env:"PORT"`
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	var path string
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		path = f.String()
	}

	var file map[string]any
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	for i := 0; i < v.NumField(); i++ {
		field, sf := v.Field(i), t.Field(i)
		if changed[fieldNameToFlag(sf.Name)] {
			continue
		}
		if key := sf.Tag.Get("toml"); key != "" && file != nil {
			if value := getNestedValue(file, key); value != nil {
				if err := setFieldValue(field, value); err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
			}
		}
		if key := sf.Tag.Get("env"); key != "" {
			if s, ok := os.LookupEnv(EnvPrefix + key); ok && s != "" {
				if err := setFieldValueFromString(field, s); err != nil {
					return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
				}
			}
		}
	}
	return nil
}

// fieldNameToFlag turns "AuthUser" into "auth-user".
func fieldNameToFlag(name string) string {
	var out []rune
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			out = append(out, '-')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// getNestedValue looks up a dotted path such as "server.port".
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	cur := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur[parts[len(parts)-1]]
}

// setFieldValue stores a decoded TOML value.
func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}
	if field.Type() == durationType {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("want a duration string, got %T", value)
		}
		return setFieldValueFromString(field, s)
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
			return nil
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int64:
		if i, ok := value.(int64); ok {
			field.SetInt(i)
			return nil
		}
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		if i, ok := value.(int64); ok && i >= 0 {
			field.SetUint(uint64(i))
			return nil
		}
	case reflect.Slice:
		arr, ok := value.([]any)
		if ok && field.Type().Elem().Kind() == reflect.String {
			out := make([]string, 0, len(arr))
			for _, item := range arr {
				if s, isStr := item.(string); isStr {
					out = append(out, s)
				}
			}
			field.Set(reflect.ValueOf(out))
			return nil
		}
	}
	return fmt.Errorf("cannot store %T in %s", value, field.Type())
}

// setFieldValueFromString parses an env value. Slices are comma separated
// and integers accept 0x prefixes.
func setFieldValueFromString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 0, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(u)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice %s", field.Type())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// LoadLoggingConfig reads the [logging] table. Keys other than level,
// format and history are per-module levels. A missing or unreadable file
// yields the defaults.
func LoadLoggingConfig(path string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	var raw struct {
		Logging map[string]any `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}
	for key, value := range raw.Logging {
		switch key {
		case "level":
			cfg.Level, _ = value.(string)
		case "format":
			cfg.Format, _ = value.(string)
		case "history":
			if n, ok := value.(int64); ok {
				cfg.History = int(n)
			}
		case "modules":
			table, _ := value.(map[string]any)
			for module, level := range table {
				if s, ok := level.(string); ok {
					cfg.Modules[module] = s
				}
			}
		default:
			if s, ok := value.(string); ok {
				cfg.Modules[key] = s
			}
		}
	}
	return cfg
}
