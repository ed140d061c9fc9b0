package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Status   int    `json:"status"`
	Critical bool   `json:"critical"`
	Auth     bool   `json:"auth"`
	Raw      bool   `json:"raw"`
}

type targetFile struct {
	Targets []target `json:"targets"`
}

type result struct {
	Target   target
	Status   int
	Duration time.Duration
	Err      error
}

func (r result) ok() bool {
	return r.Err == nil && r.Status == r.Target.Status
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base        string
		targetsPath string
		email       string
		password    string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.StringVar(&email, "email", os.Getenv("ADMIN_EMAIL"), "Account used for authenticated targets")
	flag.StringVar(&password, "password", os.Getenv("ADMIN_PASSWORD"), "Password for -email")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	logr, _ := zap.NewDevelopment()
	defer logr.Sync() //nolint:errcheck

	targets, err := loadTargets(targetsPath)
	if err != nil {
		logr.Fatal("failed to load targets", zap.Error(err))
	}

	client := &http.Client{Timeout: timeout}
	token := ""
	if email != "" {
		token, err = login(client, base, email, password)
		if err != nil {
			logr.Fatal("login failed", zap.String("email", email), zap.Error(err))
		}
	}

	var breaking, optional int
	for _, t := range targets {
		if t.Auth && token == "" {
			logr.Warn("skipping authenticated target without credentials", zap.String("path", t.Path))
			continue
		}
		res := check(client, base, token, t)
		fields := []zap.Field{
			zap.String("method", t.Method),
			zap.String("path", t.Path),
			zap.Int("want", t.Status),
			zap.Int("got", res.Status),
			zap.Duration("duration", res.Duration),
		}
		if res.ok() {
			logr.Info("ok", fields...)
			continue
		}
		if res.Err != nil {
			fields = append(fields, zap.Error(res.Err))
		}
		if t.Critical {
			breaking++
			logr.Error("failed", fields...)
		} else {
			optional++
			logr.Warn("failed", fields...)
		}
	}

	logr.Info("smoke run finished", zap.Int("breaking", breaking), zap.Int("optional", optional))
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func login(client *http.Client, base, email, password string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := client.Post(strings.TrimRight(base, "/")+"/api/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", err
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", errors.New("login response has no access token")
	}
	return data.AccessToken, nil
}

func check(client *http.Client, base, token string, t target) result {
	res := result{Target: t}

	method := strings.ToUpper(strings.TrimSpace(t.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := t.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		res.Err = err
		return res
	}
	if t.Auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Err = fmt.Errorf("read body: %w", err)
		return res
	}
	if !t.Raw {
		res.Err = validateEnvelope(resp.StatusCode, body)
	}
	return res
}

// validateEnvelope checks that successes carry data and failures carry an
// error code.
func validateEnvelope(status int, body []byte) error {
	if status == http.StatusNoContent {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("body is not a JSON envelope: %w", err)
	}
	if status >= http.StatusBadRequest {
		if env.Error == nil || env.Error.Code == "" {
			return errors.New("error response without error code")
		}
		return nil
	}
	if len(env.Data) == 0 {
		return errors.New("success response without data")
	}
	return nil
}
