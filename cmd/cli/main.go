// Command alebaz is a CLI client for the Alebaz chat API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	u "github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "alebaz")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "alebaz")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", errors.New("no saved token (login required)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

func removeToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// tokenExpiry reads exp from a JWT without verifying the signature.
func tokenExpiry(tok string, fallback time.Duration) time.Time {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(tok, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Now().Add(fallback)
	}
	return claims.ExpiresAt.Time
}

// ---- utils ----

func printJSON(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, err = w.Write(raw)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const usageText = `alebaz CLI
Usage:
  alebaz [-addr URL] <cmd> [args]

Commands:
  version
  start-email     -email <addr>
  verify-email    -email <addr> -code <6 digits>
  resend-email    -email <addr>
  save-profile    -email <addr> [-username <name>] [-image <file>]
  save-phone-pin  -email <addr> -cc <+234> -phone <number> -pin <6 digits>
  login           -phone <+E.164> -pin <6 digits>      (saves token)
  logout
  me
  search          -q <query>
  dm              -user <uuid>
  conversations
  messages        -conv <uuid>
  send            -conv <uuid> -body <text>
  clear|hide|unhide -conv <uuid>
`

var errUsage = errors.New("usage")

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the HTTP API.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout, nil)
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run executes one command. hc overrides the HTTP client in tests.
func run(ctx context.Context, args []string, out io.Writer, hc *http.Client) error {
	global := flag.NewFlagSet("alebaz", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	addr := global.String("addr", envOr("ALEBAZ_ADDR", "http://localhost:8080"), "server base URL")
	if err := global.Parse(args); err != nil || global.NArg() < 1 {
		return errUsage
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "email address")
	code := fs.String("code", "", "verification code")
	username := fs.String("username", "", "username")
	image := fs.String("image", "", "profile image file")
	cc := fs.String("cc", "", "country code, e.g. +234")
	phone := fs.String("phone", "", "phone number")
	pin := fs.String("pin", "", "6-digit PIN")
	query := fs.String("q", "", "search query")
	user := fs.String("user", "", "other client id")
	conv := fs.String("conv", "", "conversation id")
	body := fs.String("body", "", "message text")
	if err := fs.Parse(rest); err != nil {
		return errUsage
	}

	if cmd == "version" {
		_, err := fmt.Fprintf(out, "alebaz %s (%s)\n", version, buildDate)
		return err
	}

	anon := newAPIClient(*addr, "", hc)
	authed := func() (*apiClient, error) {
		tok, err := loadToken()
		if err != nil {
			return nil, err
		}
		return newAPIClient(*addr, tok, hc), nil
	}
	convPath := func(suffix string) (string, error) {
		id, err := u.FromString(*conv)
		if err != nil {
			return "", fmt.Errorf("-conv must be a uuid: %w", err)
		}
		return "/api/conversations/" + id.String() + suffix, nil
	}

	var (
		raw json.RawMessage
		err error
	)
	switch cmd {
	case "start-email":
		raw, err = anon.call(ctx, http.MethodPost, "/api/clients/start-email", map[string]string{"email": *email})

	case "verify-email":
		raw, err = anon.call(ctx, http.MethodPost, "/api/clients/verify-email", map[string]string{"email": *email, "code": *code})

	case "resend-email":
		raw, err = anon.call(ctx, http.MethodPost, "/api/clients/resend-email", map[string]string{"email": *email})

	case "save-profile":
		raw, err = anon.uploadProfile(ctx, *email, *username, *image)

	case "save-phone-pin":
		raw, err = anon.call(ctx, http.MethodPost, "/api/clients/save-phone-pin", map[string]string{
			"email": *email, "country_code": *cc, "phone": *phone, "pin": *pin,
		})

	case "login":
		raw, err = anon.call(ctx, http.MethodPost, "/api/clients/login", map[string]string{"phone": *phone, "pin": *pin})
		if err != nil {
			return err
		}
		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil || resp.Token == "" {
			return errors.New("login response has no token")
		}
		if err := saveToken(resp.Token, tokenExpiry(resp.Token, time.Hour)); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, "ok")
		return err

	case "logout":
		c, err := authed()
		if err != nil {
			return err
		}
		if _, err := c.call(ctx, http.MethodPost, "/api/logout", nil); err != nil {
			return err
		}
		if err := removeToken(); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, "ok")
		return err

	case "me", "conversations", "search", "dm", "messages", "send", "clear", "hide", "unhide":
		c, aerr := authed()
		if aerr != nil {
			return aerr
		}
		raw, err = authedCall(ctx, c, cmd, *query, *user, *body, convPath)

	default:
		return errUsage
	}
	if err != nil {
		return err
	}
	return printJSON(out, raw)
}

func authedCall(ctx context.Context, c *apiClient, cmd, query, user, body string, convPath func(string) (string, error)) (json.RawMessage, error) {
	switch cmd {
	case "me":
		return c.call(ctx, http.MethodGet, "/api/me", nil)
	case "conversations":
		return c.call(ctx, http.MethodGet, "/api/conversations", nil)
	case "search":
		return c.call(ctx, http.MethodGet, "/api/client/search?q="+url.QueryEscape(query), nil)
	case "dm":
		return c.call(ctx, http.MethodPost, "/api/conversations/dm", map[string]string{"user_id": user})
	}

	suffix := "/" + cmd
	method := http.MethodPost
	var payload any
	switch cmd {
	case "messages":
		suffix, method = "/messages", http.MethodGet
	case "send":
		suffix, payload = "/messages", map[string]string{"body": body}
	}
	p, err := convPath(suffix)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, method, p, payload)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
