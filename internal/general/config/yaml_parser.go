package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseYAML parses the specific two-level mapping used by config.yaml
func parseYAML(r io.Reader, cfg *Config) error {
	type section int
	const (
		none section = iota
		ws
		jw
		db
		rm
		rd
		pv
		hs
	)

	sections := map[string]section{
		"websocket:": ws,
		"jwt:":       jw,
		"database:":  db,
		"rabbitmq:":  rm,
		"redis:":     rd,
		"provider:":  pv,
		"history:":   hs,
	}

	scanner := bufio.NewScanner(r)
	cur := none

	lineNo := 0
	seenTop := map[section]bool{}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		// strip comments
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			raw = raw[:i]
		}

		line := strings.TrimRight(raw, " \t\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		// top-level section? (no leading spaces)
		if line[0] != ' ' && line[0] != '\t' {
			top := strings.TrimSpace(line)
			sec, ok := sections[top]
			if !ok {
				return fmt.Errorf("line %d: unknown top-level key %q", lineNo, strings.TrimSuffix(top, ":"))
			}
			if seenTop[sec] {
				return fmt.Errorf("line %d: duplicate %q section", lineNo, strings.TrimSuffix(top, ":"))
			}
			seenTop[sec] = true
			cur = sec
			continue
		}

		// expect indented "key: value"
		if cur == none {
			return fmt.Errorf("line %d: key without a section", lineNo)
		}
		trim := strings.TrimSpace(line)
		colon := strings.IndexByte(trim, ':')
		if colon <= 0 {
			return fmt.Errorf("line %d: expected 'key: value'", lineNo)
		}
		key := strings.TrimSpace(trim[:colon])
		val := resolveScalar(trim[colon+1:])

		var err error
		switch cur {
		case ws:
			switch key {
			case "port":
				cfg.WebSocket.Port, err = atoi(lineNo, "websocket.port", val)
			default:
				err = unknownKey(lineNo, "websocket", key)
			}
		case jw:
			switch key {
			case "secret_key":
				cfg.JWT.SecretKey = val
			default:
				err = unknownKey(lineNo, "jwt", key)
			}
		case db:
			switch key {
			case "host":
				cfg.Database.Host = val
			case "port":
				cfg.Database.Port, err = atoi(lineNo, "database.port", val)
			case "user":
				cfg.Database.User = val
			case "password":
				cfg.Database.Password = val
			case "database":
				cfg.Database.Name = val
			default:
				err = unknownKey(lineNo, "database", key)
			}
		case rm:
			switch key {
			case "host":
				cfg.RabbitMQ.Host = val
			case "port":
				cfg.RabbitMQ.Port, err = atoi(lineNo, "rabbitmq.port", val)
			case "user":
				cfg.RabbitMQ.User = val
			case "password":
				cfg.RabbitMQ.Password = val
			default:
				err = unknownKey(lineNo, "rabbitmq", key)
			}
		case rd:
			switch key {
			case "host":
				cfg.Redis.Host = val
			case "port":
				cfg.Redis.Port, err = atoi(lineNo, "redis.port", val)
			default:
				err = unknownKey(lineNo, "redis", key)
			}
		case pv:
			switch key {
			case "base_url":
				cfg.Provider.BaseURL = val
			case "api_key":
				cfg.Provider.APIKey = val
			case "timeout_seconds":
				cfg.Provider.TimeoutSeconds, err = atoi(lineNo, "provider.timeout_seconds", val)
			default:
				err = unknownKey(lineNo, "provider", key)
			}
		case hs:
			switch key {
			case "enabled":
				cfg.History.Enabled, err = parseBool(lineNo, "history.enabled", val)
			default:
				err = unknownKey(lineNo, "history", key)
			}
		}
		if err != nil {
			return err
		}
	}

	return scanner.Err()
}

func atoi(lineNo int, field, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s must be int: %v", lineNo, field, err)
	}
	return n, nil
}

func parseBool(lineNo int, field, val string) (bool, error) {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("line %d: %s must be bool: %v", lineNo, field, err)
	}
	return b, nil
}

func unknownKey(lineNo int, section, key string) error {
	return fmt.Errorf("line %d: unknown key in %s: %q", lineNo, section, key)
}

// resolveScalar trims whitespace and removes surrounding quotes from
// YAML-like scalars so values such as jwt.secret_key are not stored with
// extra quotes.
func resolveScalar(s string) string {
	s = strings.TrimSpace(s)

	n := len(s)
	if n >= 2 {
		if (s[0] == '"' && s[n-1] == '"') || (s[0] == '\'' && s[n-1] == '\'') {
			if unq, err := strconv.Unquote(s); err == nil {
				return unq
			}
			// fallback if strconv.Unquote fails (e.g., single quotes)
			return s[1 : n-1]
		}
	}

	return s
}
