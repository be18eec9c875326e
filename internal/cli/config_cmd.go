// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - The "config" command.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/streamchat/internal/config"
)

// HandleConfig runs "config show|get|set|path".
func HandleConfig(args Args) error {
	return runConfig(args, os.Stdout)
}

func runConfig(args Args, w io.Writer) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(args, w)
	case "get":
		return configGet(args, w)
	case "set":
		return configSet(args, w)
	case "path":
		return configPath(args, w)
	default:
		return usageErrorf("config", "unknown subcommand %q (use show, get, set or path)", args.Subcommand)
	}
}

// configFilePath is --config or ~/.streamchat/config.toml.
func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

// displayValue renders a value for output, masking credentials.
func displayValue(key string, v interface{}) string {
	s := fmt.Sprint(v)
	if config.IsSecretKey(key) {
		return maskSecret(s)
	}
	return s
}

// maskSecret keeps the last four characters of long secrets only.
func maskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 8:
		return "********"
	default:
		return "****" + s[len(s)-4:]
	}
}

func configShow(args Args, w io.Writer) error {
	cfg, _, err := loadConfig(args)
	if err != nil {
		return err
	}

	if args.JSON {
		out := make(map[string]interface{}, len(config.GetAllKeys()))
		for _, key := range config.GetAllKeys() {
			v, err := cfg.Get(key)
			if err != nil {
				return err
			}
			// Secrets only report whether they are set
			if config.IsSecretKey(key) {
				v = fmt.Sprint(v) != ""
			}
			out[key] = v
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(w, TitleStyle.Render("streamchat configuration"))
	section := ""
	for _, key := range config.GetAllKeys() {
		if head, _, ok := strings.Cut(key, "."); ok && head != section {
			section = head
			fmt.Fprintln(w)
			fmt.Fprintln(w, "["+section+"]")
		}
		v, err := cfg.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "  "+RenderLabel(key)+ValueStyle.Render(displayValue(key, v)))
	}
	return nil
}

func configGet(args Args, w io.Writer) error {
	if args.ConfigKey == "" {
		return usageErrorf("config get", "missing key\nKeys: %s", strings.Join(config.GetAllKeys(), ", "))
	}
	cfg, _, err := loadConfig(args)
	if err != nil {
		return err
	}
	v, err := cfg.Get(args.ConfigKey)
	if err != nil {
		return usageErrorf("config get", "%v", err)
	}
	fmt.Fprintln(w, displayValue(args.ConfigKey, v))
	return nil
}

// configSet edits the file itself, not the effective config, so
// environment overrides never leak into it.
func configSet(args Args, w io.Writer) error {
	key, value := args.ConfigKey, args.ConfigVal
	if key == "" {
		return usageErrorf("config set", "usage: streamchat config set <key> <value>")
	}
	path, err := configFilePath(args)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		load := config.LoadTOML
		if strings.HasSuffix(path, ".json") {
			load = config.LoadJSON
		}
		if err := load(cfg, path); err != nil {
			return err
		}
	}

	current, err := cfg.Get(key)
	if err != nil {
		return usageErrorf("config set", "%v", err)
	}
	var newValue interface{} = value
	if _, isBool := current.(bool); isBool {
		b, err := ParseBoolString(value)
		if err != nil {
			return usageErrorf("config set", "%v", err)
		}
		newValue = b
	}
	if err := cfg.Set(key, newValue); err != nil {
		return usageErrorf("config set", "%v", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if strings.HasSuffix(path, ".json") {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return err
	}

	if !args.Quiet {
		fmt.Fprintf(w, "%s %s = %s\n", SuccessStyle.Render("Set"), key, displayValue(key, newValue))
	}
	return nil
}

func configPath(args Args, w io.Writer) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	if args.JSON {
		_, statErr := os.Stat(path)
		return json.NewEncoder(w).Encode(map[string]interface{}{
			"path":   path,
			"exists": statErr == nil,
		})
	}
	fmt.Fprintln(w, path)
	return nil
}
