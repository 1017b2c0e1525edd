package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
)

func TestRollbarLogger_writesStructuredLines(t *testing.T) {
	conf := &core.Config{AppName: "PM-AJAY", Env: "TEST", TestMode: true}
	var buf bytes.Buffer
	logger := NewRollbarLogger(&buf, conf).With("fund")

	usr := user.User{ID: "u1", Role: user.RoleDistrictCollector}
	logger.Error("approving transaction", errors.New("boom"), usr, map[string]interface{}{"tx": "TXN-1"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "approving transaction", line["message"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, user.RoleDistrictCollector, line["user_role"])
	assert.Equal(t, "TXN-1", line["tx"])
	assert.Equal(t, "fund", line["component"])
	assert.Equal(t, "PM-AJAY", line["app"])
}

func TestRollbarLogger_levels(t *testing.T) {
	tests := []struct {
		name    string
		debug   bool
		wantOut bool
	}{
		{name: "debug enabled", debug: true, wantOut: true},
		{name: "debug disabled", debug: false, wantOut: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewRollbarLogger(&buf, &core.Config{Debug: tt.debug, TestMode: true})
			logger.Debug("details")
			assert.Equal(t, tt.wantOut, buf.Len() > 0)
		})
	}
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleLogger(&buf, false).Warn("user not found", map[string]interface{}{"email": "a@b.in"})
	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "user not found")
	assert.Contains(t, out, "email=a@b.in")
}
