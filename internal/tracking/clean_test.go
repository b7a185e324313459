package tracking

import (
	"encoding/json"
	"testing"

	"github.com/aman-churiwal/api-tracker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.TrackingConfig {
	return config.TrackingConfig{
		DecodeRequestBody: true,
		MaxPathLength:     200,
		MaxBodyLength:     64 * 1024,
		CleanedSubstitute: "********",
	}
}

func newTestTracker(t *testing.T, opts ...Option) *Tracker {
	t.Helper()

	tracker, err := New(testConfig(), zap.NewNop(), discardLog, opts...)
	require.NoError(t, err)
	return tracker
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestCleanDataRedactsBuiltinFields(t *testing.T) {
	tracker := newTestTracker(t)

	out := decode(t, tracker.CleanData([]byte(`{"password":"hunter2","name":"bob"}`)))

	assert.Equal(t, "********", out["password"])
	assert.Equal(t, "bob", out["name"])
}

func TestCleanDataRedactsCustomFieldsCaseInsensitive(t *testing.T) {
	tracker := newTestTracker(t, WithSensitiveFields("mY_fiElD"))

	out := decode(t, tracker.CleanData([]byte(`{"MY_FIELD":"mysecret","capitalize":"ABS"}`)))

	assert.Equal(t, "********", out["MY_FIELD"])
	assert.Equal(t, "ABS", out["capitalize"])
}

func TestCleanDataRedactsNestedStructures(t *testing.T) {
	tracker := newTestTracker(t)

	out := decode(t, tracker.CleanData([]byte(`{"outer":{"secret":"s3cr3t","ok":1},"list":[{"api":"x"}]}`)))

	outer := out["outer"].(map[string]any)
	assert.Equal(t, "********", outer["secret"])
	assert.Equal(t, float64(1), outer["ok"])

	item := out["list"].([]any)[0].(map[string]any)
	assert.Equal(t, "********", item["api"])
}

func TestCleanDataRedactsJSONEncodedStringValues(t *testing.T) {
	tracker := newTestTracker(t)

	out := decode(t, tracker.CleanData([]byte(`{"payload":"{\"key\":\"abc\",\"plain\":\"v\"}"}`)))

	payload := out["payload"].(map[string]any)
	assert.Equal(t, "********", payload["key"])
	assert.Equal(t, "v", payload["plain"])
}

func TestCleanDataSensitiveKeyWithStructuredValue(t *testing.T) {
	tracker := newTestTracker(t)

	out := decode(t, tracker.CleanData([]byte(`{"secret":{"inner":"x"}}`)))

	assert.Equal(t, "********", out["secret"])
}

func TestCleanDataNonJSONPassthrough(t *testing.T) {
	tracker := newTestTracker(t)

	assert.Equal(t, "plain text body", tracker.CleanData([]byte("plain text body")))
	assert.Equal(t, "", tracker.CleanData(nil))
}

func TestCleanDataCustomSubstitute(t *testing.T) {
	tracker := newTestTracker(t, WithCleanedSubstitute("[redacted]"))

	out := decode(t, tracker.CleanData([]byte(`{"password":"x"}`)))

	assert.Equal(t, "[redacted]", out["password"])
}

func TestCleanParams(t *testing.T) {
	tracker := newTestTracker(t, WithSensitiveFields("my_field"))

	out := decode(t, tracker.CleanParams(map[string][]string{
		"api":        {"1234"},
		"capitalize": {"ABS"},
		"my_field":   {"mysecret"},
	}))

	assert.Equal(t, "********", out["api"])
	assert.Equal(t, "ABS", out["capitalize"])
	assert.Equal(t, "********", out["my_field"])
}

func TestNewRejectsEmptySubstitute(t *testing.T) {
	_, err := New(testConfig(), zap.NewNop(), discardLog, WithCleanedSubstitute(""))
	assert.Error(t, err)
}

func TestNewRequiresHandleLog(t *testing.T) {
	_, err := New(testConfig(), zap.NewNop(), nil)
	assert.Error(t, err)
}
