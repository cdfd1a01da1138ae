package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func TestCheckIntervals_CleanHistory(t *testing.T) {
	versions := []Version{
		{ID: "v-1", SubjectID: "s", Kind: "quantity", ValidFrom: ts(100), ValidTo: ts(200)},
		{ID: "v-2", SubjectID: "s", Kind: "quantity", ValidFrom: ts(200), ValidTo: ts(300)},
		{ID: "v-3", SubjectID: "s", Kind: "quantity", ValidFrom: ts(300), ValidTo: Sentinel},
	}

	assert.Empty(t, CheckIntervals("s", versions))
}

func TestCheckIntervals_EmptyHistory(t *testing.T) {
	assert.Empty(t, CheckIntervals("s", nil))
}

func TestCheckIntervals_UnorderedInput(t *testing.T) {
	versions := []Version{
		{ID: "v-2", ValidFrom: ts(200), ValidTo: Sentinel},
		{ID: "v-1", ValidFrom: ts(100), ValidTo: ts(200)},
	}

	assert.Empty(t, CheckIntervals("s", versions), "checker must sort by valid_from itself")
}

func TestCheckIntervals_Overlap(t *testing.T) {
	versions := []Version{
		{ID: "v-1", ValidFrom: ts(100), ValidTo: ts(250)},
		{ID: "v-2", ValidFrom: ts(200), ValidTo: Sentinel},
	}

	violations := CheckIntervals("s", versions)
	assert.Len(t, violations, 1)
	assert.Equal(t, "overlapping intervals", violations[0].Message)
	assert.Equal(t, []string{"v-1", "v-2"}, violations[0].VersionIDs)
}

func TestCheckIntervals_TwoOpenVersions(t *testing.T) {
	versions := []Version{
		{ID: "v-1", ValidFrom: ts(100), ValidTo: Sentinel},
		{ID: "v-2", ValidFrom: ts(200), ValidTo: Sentinel},
	}

	violations := CheckIntervals("s", versions)
	// Two open versions necessarily also overlap.
	assert.Len(t, violations, 2)

	var messages []string
	for _, v := range violations {
		messages = append(messages, v.Message)
	}
	assert.Contains(t, messages, "2 open versions, want at most 1")
	assert.Contains(t, messages, "overlapping intervals")
}

func TestCheckIntervals_InvertedInterval(t *testing.T) {
	versions := []Version{
		{ID: "v-1", ValidFrom: ts(200), ValidTo: ts(100)},
	}

	violations := CheckIntervals("s", versions)
	assert.Len(t, violations, 1)
	assert.Equal(t, []string{"v-1"}, violations[0].VersionIDs)
}
