package httpserver

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const maxJSONBody = 64 << 10

// loadSchemas compiles every embedded schema, keyed by file name without extension.
func loadSchemas() (map[string]*gojsonschema.Schema, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*gojsonschema.Schema, len(entries))
	for _, e := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		sch, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".json")] = sch
	}
	return out, nil
}

// bindJSON validates the body against the named schema and decodes it into dst.
// On failure the response is written and false is returned.
func (s *Server) bindJSON(c *gin.Context, schema string, dst any) bool {
	sch, ok := s.schemas[schema]
	if !ok {
		s.fail(c, fmt.Errorf("unknown schema %q", schema))
		return false
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJSONBody+1))
	if err != nil {
		s.reject(c, http.StatusBadRequest, "Could not read request body", nil)
		return false
	}
	if len(raw) > maxJSONBody {
		s.reject(c, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	res, err := sch.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		s.reject(c, http.StatusBadRequest, "Malformed JSON body", nil)
		return false
	}
	if !res.Valid() {
		details := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			details = append(details, e.String())
		}
		s.reject(c, http.StatusUnprocessableEntity, details[0], details)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.reject(c, http.StatusBadRequest, "Malformed JSON body", nil)
		return false
	}
	return true
}

// reject answers a request that never reached a service.
func (s *Server) reject(c *gin.Context, status int, msg string, details []string) {
	c.Set(errorKindKey, "validation")
	c.AbortWithStatusJSON(status, errorBody{Message: msg, Errors: details})
}
