package eventtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/regtrigger/internal/env"
	"github.com/simplesurance/regtrigger/internal/notification"
)

func TestAccepts(t *testing.T) {
	testcases := []struct {
		rawType  string
		accepted []EventType
	}{
		{rawType: "push", accepted: []EventType{Push}},
		{rawType: "PUSH", accepted: []EventType{Push}},
		{rawType: "TAG_PUSH", accepted: []EventType{Push}},
		{rawType: " manifest_push ", accepted: []EventType{Push}},
		{rawType: "TAG_DELETE", accepted: []EventType{Delete}},
		{rawType: "delete", accepted: []EventType{Delete}},
		{rawType: "SCAN_COMPLETED", accepted: []EventType{Scan}},
		{rawType: "scan_failed", accepted: []EventType{Scan}},
		{rawType: "scan_started", accepted: nil},
		{rawType: "PROMOTION", accepted: []EventType{Promotion}},
		{rawType: "PUSH_MIRRORING", accepted: []EventType{Mirroring}},
		{rawType: "poll_mirroring", accepted: []EventType{Mirroring}},
		{rawType: "REPO_CREATED", accepted: nil},
		{rawType: "", accepted: nil},
	}

	for _, tc := range testcases {
		t.Run(tc.rawType, func(t *testing.T) {
			var accepted []EventType

			for _, et := range All {
				if et.Accepts(tc.rawType) {
					accepted = append(accepted, et)
				}
			}

			assert.Equal(t, tc.accepted, accepted)
		})
	}
}

func TestParseList(t *testing.T) {
	ets, err := ParseList([]string{"delete", "Push", " SCAN "})
	require.NoError(t, err)
	assert.Equal(t, []EventType{Delete, Push, Scan}, ets)
	assert.Equal(t, []string{"DELETE", "PUSH", "SCAN"}, Names(ets))

	_, err = ParseList([]string{"PUSH", "push"})
	assert.Error(t, err)

	_, err = ParseList([]string{"PUSH", "BUILD"})
	assert.Error(t, err)

	_, err = ParseList(nil)
	assert.Error(t, err)
}

func TestPushBuildEnvironment(t *testing.T) {
	n := notification.New(notification.Data{
		Registry:     notification.RegistryDTR,
		EventRawType: "TAG_PUSH",
		Digest:       "sha256:abc",
		ImageName:    "foo/bar:1",
		OS:           "linux",
	}, nil)

	vars := env.Vars{"EXISTING": "1"}
	require.NoError(t, Push.BuildEnvironment(vars, n))

	assert.Equal(t, env.Vars{
		"EXISTING":   "1",
		EnvEvent:     "PUSH",
		EnvDigest:    "sha256:abc",
		EnvImageName: "foo/bar:1",
		EnvOS:        "linux",
	}, vars)
}

func TestBuildEnvironmentIsIdempotent(t *testing.T) {
	n := notification.New(notification.Data{
		Registry:     notification.RegistryDTR,
		EventRawType: "SCAN_COMPLETED",
		Tag:          "1.2",
		Scan:         &notification.ScanSummary{Critical: 1, Major: 2, Minor: 3, Status: "done"},
		Promotion:    &notification.Promotion{SourceRepository: "a/b", SourceTag: "rc"},
	}, nil)

	for _, et := range All {
		t.Run(et.Name(), func(t *testing.T) {
			once := env.Vars{}
			require.NoError(t, et.BuildEnvironment(once, n))

			twice := env.Vars{}
			require.NoError(t, et.BuildEnvironment(twice, n))
			require.NoError(t, et.BuildEnvironment(twice, n))

			assert.Equal(t, once, twice)
			assert.Equal(t, et.Name(), once[EnvEvent])
		})
	}
}

func TestScanAndPromotionRequireData(t *testing.T) {
	n := notification.New(notification.Data{EventRawType: "SCAN_COMPLETED"}, nil)

	assert.Error(t, Scan.BuildEnvironment(env.Vars{}, n))
	assert.Error(t, Promotion.BuildEnvironment(env.Vars{}, n))
}

func TestScanBuildEnvironment(t *testing.T) {
	n := notification.New(notification.Data{
		EventRawType: "SCAN_COMPLETED",
		Scan:         &notification.ScanSummary{Critical: 1, Major: 0, Minor: 7},
	}, nil)

	vars := env.Vars{}
	require.NoError(t, Scan.BuildEnvironment(vars, n))

	assert.Equal(t, env.Vars{
		EnvEvent:        "SCAN",
		EnvScanCritical: "1",
		EnvScanMajor:    "0",
		EnvScanMinor:    "7",
	}, vars)
}

func TestDeleteBuildEnvironment(t *testing.T) {
	n := notification.New(notification.Data{
		Registry:     notification.RegistryDTR,
		EventRawType: "TAG_DELETE",
		Tag:          "old",
	}, nil)

	vars := env.Vars{}
	require.NoError(t, Delete.BuildEnvironment(vars, n))

	assert.Equal(t, env.Vars{
		EnvEvent:      "DELETE",
		EnvDeletedTag: "old",
	}, vars)
}

func TestPromotionBuildEnvironment(t *testing.T) {
	n := notification.New(notification.Data{
		Registry:     notification.RegistryDTR,
		EventRawType: "PROMOTION",
		Tag:          "1.0",
		Promotion:    &notification.Promotion{SourceRepository: "acme/src", SourceTag: "rc1"},
	}, nil)

	vars := env.Vars{}
	require.NoError(t, Promotion.BuildEnvironment(vars, n))

	assert.Equal(t, env.Vars{
		EnvEvent:               "PROMOTION",
		EnvPromotionSourceRepo: "acme/src",
		EnvPromotionSourceTag:  "rc1",
	}, vars)
}
