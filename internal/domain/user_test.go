package domain

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/savos-bot/internal/state"
)

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    time.Time
		zero    bool
		wantErr bool
	}{
		{name: "rfc3339", input: `"2024-05-01T10:00:00Z"`, want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{name: "legacy with micros", input: `"2024-05-01T10:00:00.123456"`, want: time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.Local)},
		{name: "legacy without fraction", input: `"2024-05-01T10:00:00"`, want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)},
		{name: "null", input: `null`, zero: true},
		{name: "empty string", input: `""`, zero: true},
		{name: "garbage", input: `"yesterday"`, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tc.input), &ts)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tc.zero {
				assert.True(t, ts.IsZero())
				return
			}
			assert.True(t, tc.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	data, err = json.Marshal(NewTimestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01T10:00:00Z"`, string(data))
}

func TestUser_DecodesLegacyRecord(t *testing.T) {
	raw := `{"id": 42, "username": null, "first_name": "Ivan", "last_name": null,
		"joined_at": "2024-05-01T10:00:00.5", "is_active": true, "profile_link": null,
		"photo_url": null, "phone": "79991234567", "internal_id": 3}`

	var u User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))

	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "", u.Username)
	assert.True(t, u.Active())
	assert.True(t, u.HasPhone())
	assert.Equal(t, 3, Deref(u.InternalID))
	assert.Equal(t, state.StateRegistered, u.ConversationState())
}

func TestUser_Merge(t *testing.T) {
	joined := NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	existing := &User{
		ID:        1,
		Username:  "old",
		FirstName: "Ivan",
		LastName:  "Petrov",
		Phone:     Ptr("79990000000"),
		JoinedAt:  joined,
	}

	existing.Merge(&User{
		ID:        1,
		Username:  "new",
		FirstName: "",
		IsActive:  Ptr(false),
		JoinedAt:  NewTimestamp(time.Now()),
	})

	assert.Equal(t, "new", existing.Username)
	assert.Equal(t, "Ivan", existing.FirstName)
	assert.Equal(t, "Petrov", existing.LastName)
	assert.Equal(t, "79990000000", Deref(existing.Phone))
	assert.False(t, existing.Active())
	assert.Equal(t, joined, existing.JoinedAt)
}

func TestUser_ConversationState(t *testing.T) {
	testCases := []struct {
		name     string
		user     *User
		expected state.State
	}{
		{name: "nil user", user: nil, expected: state.StateUnknown},
		{name: "legacy without phone", user: &User{ID: 1}, expected: state.StateAwaitingPhone},
		{name: "legacy with phone", user: &User{ID: 1, Phone: Ptr("123")}, expected: state.StateRegistered},
		{name: "explicit state wins", user: &User{ID: 1, State: state.StateAwaitingPhone, Phone: Ptr("123")}, expected: state.StateAwaitingPhone},
		{name: "empty phone is no phone", user: &User{ID: 1, Phone: Ptr("")}, expected: state.StateAwaitingPhone},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.user.ConversationState())
		})
	}
}

func TestUser_CloneIsDeep(t *testing.T) {
	orig := &User{ID: 1, Phone: Ptr("111")}
	clone := orig.Clone()
	*clone.Phone = "222"

	assert.Equal(t, "111", *orig.Phone)
}

func TestProfileLinkFor(t *testing.T) {
	assert.Nil(t, ProfileLinkFor(""))
	assert.Equal(t, "https://t.me/savos", Deref(ProfileLinkFor("@savos")))
}

func TestComputeStatistics(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.Local)
	users := []*User{
		{ID: 1, JoinedAt: NewTimestamp(now.Add(-time.Hour)), IsActive: Ptr(true)},
		{ID: 2, JoinedAt: NewTimestamp(now.AddDate(0, 0, -1)), IsActive: Ptr(true)},
		{ID: 3, JoinedAt: NewTimestamp(now.Add(-2 * time.Hour)), IsActive: Ptr(false)},
	}

	stats := ComputeStatistics(users, now)

	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 2, stats.ActiveUsers)
	assert.Equal(t, 2, stats.TodayUsers)
	assert.True(t, now.Equal(stats.LastUpdated.Time))
}

func TestSettingsPatch_Apply(t *testing.T) {
	s := &Settings{BotName: "SavosBot Club", MaxUsers: 1000}
	patch := SettingsPatch{MaintenanceMode: Ptr(true), MaxUsers: Ptr(2)}

	require.False(t, patch.Empty())
	patch.Apply(s)

	assert.Equal(t, "SavosBot Club", s.BotName)
	assert.True(t, s.MaintenanceMode)
	assert.True(t, s.CapacityReached(2))
	assert.False(t, s.CapacityReached(1))
	assert.True(t, SettingsPatch{}.Empty())

	unlimited := &Settings{MaxUsers: 0}
	assert.False(t, unlimited.CapacityReached(1_000_000))
}
