package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraatlas/internal/models"
	"fraatlas/internal/storage"
	"fraatlas/internal/testutil"
)

func TestProfileService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.account(t, "citizen@example.org", models.RoleCitizen)
	svc := NewProfileService(f.profiles, testutil.NewMemoryStore())

	profile, err := svc.Update(ctx, UpdateProfileInput{
		UserID:   user.UserID,
		FullName: ptr("  Sukhmati Bai "),
		Phone:    ptr("+91 98765 43210"),
		Address:  ptr("Ward 4, Barkheda"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sukhmati Bai", profile.FullName)
	require.NotNil(t, profile.Phone)
	assert.Equal(t, "+91 98765 43210", *profile.Phone)

	profile, err = svc.Update(ctx, UpdateProfileInput{UserID: user.UserID, Phone: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, profile.Phone)
	assert.Equal(t, "Sukhmati Bai", profile.FullName, "untouched fields are kept")
	require.NotNil(t, profile.Address)

	for name, in := range map[string]UpdateProfileInput{
		"blank name": {UserID: user.UserID, FullName: ptr(" ")},
		"long name":  {UserID: user.UserID, FullName: ptr(strings.Repeat("a", 101))},
		"bad phone":  {UserID: user.UserID, Phone: ptr("call me")},
		"long addr":  {UserID: user.UserID, Address: ptr(strings.Repeat("a", 501))},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Update(ctx, in)
			requireAppError(t, err, models.CodeValidation)
		})
	}
}

func TestProfileService_UploadAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.account(t, "citizen@example.org", models.RoleCitizen)
	store := testutil.NewMemoryStore()
	svc := NewProfileService(f.profiles, store)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	profile, err := svc.UploadAvatar(ctx, UploadAvatarInput{UserID: user.UserID, Content: testutil.TinyPNG(t, 800, 600)})
	require.NoError(t, err)
	require.NotNil(t, profile.AvatarURL)
	assert.True(t, strings.HasSuffix(*profile.AvatarURL, "/profile-avatars/"+storage.AvatarKey(user.UserID)+"?v=1700000000"))

	data, contentType, ok := store.Object(storage.BucketAvatars, storage.AvatarKey(user.UserID))
	require.True(t, ok)
	assert.Equal(t, "image/webp", contentType)
	assert.Equal(t, "image/webp", http.DetectContentType(data))
	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, AvatarSize, cfg.Width)
	assert.Equal(t, AvatarSize, cfg.Height)

	_, err = svc.UploadAvatar(ctx, UploadAvatarInput{UserID: user.UserID, Content: []byte("not an image")})
	requireAppError(t, err, models.CodeValidation)

	_, err = svc.UploadAvatar(ctx, UploadAvatarInput{UserID: user.UserID})
	requireAppError(t, err, models.CodeValidation)
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGBA
// pixels with no image data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolour with alpha

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.WriteString("IHDR")
	buf.Write(ihdr)
	crc := crc32.NewIEEE()
	_, _ = crc.Write([]byte("IHDR"))
	_, _ = crc.Write(ihdr)
	_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())
	return buf.Bytes()
}

func TestNormalizeAvatar_RejectsHugeDimensions(t *testing.T) {
	_, err := normalizeAvatar(pngHeader(20000, 20000))
	assert.ErrorIs(t, err, errImageTooLarge)

	// Within the pixel limit the truncated body fails in the full decode.
	_, err = normalizeAvatar(pngHeader(64, 64))
	assert.ErrorIs(t, err, errUnsupportedImage)

	_, err = normalizeAvatar(testutil.TinyPNG(t, 40, 30))
	assert.NoError(t, err)
}

func TestProfileService_UploadAvatarRejectsHugeDimensions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.account(t, "citizen@example.org", models.RoleCitizen)
	store := testutil.NewMemoryStore()
	svc := NewProfileService(f.profiles, store)

	_, err := svc.UploadAvatar(ctx, UploadAvatarInput{UserID: user.UserID, Content: pngHeader(8000, 6000)})
	requireAppError(t, err, models.CodeValidation)
	assert.Contains(t, err.Error(), "Image dimensions are too large")

	_, _, ok := store.Object(storage.BucketAvatars, storage.AvatarKey(user.UserID))
	assert.False(t, ok)
}
