package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hspatel/fileshare/internal/objstore"
	appErr "github.com/hspatel/fileshare/internal/pkg/errors"
	"github.com/hspatel/fileshare/internal/service"
	"github.com/hspatel/fileshare/test/testutil"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *captureNotifier) Notify(ctx context.Context, to, fileName, link string, validFor time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, to)
	return nil
}

type fixture struct {
	store    *testutil.MemShareStore
	blobs    *objstore.MemoryStore
	notifier *captureNotifier
	cleaner  *service.Cleaner
	svc      *service.ShareService
}

func newFixture(t *testing.T, exclusive bool) *fixture {
	t.Helper()
	store := testutil.NewMemShareStore()
	blobs := objstore.NewMemory()
	notifier := &captureNotifier{}
	cleaner := service.NewCleaner(store, blobs, 10*time.Millisecond, exclusive)
	svc := service.NewShareService(store, blobs, notifier, cleaner, service.Options{
		URLTTL:        time.Hour,
		PublicBaseURL: "http://localhost:8080",
		Exclusive:     exclusive,
	})
	return &fixture{store: store, blobs: blobs, notifier: notifier, cleaner: cleaner, svc: svc}
}

func (f *fixture) create(t *testing.T, recipients ...string) string {
	t.Helper()
	result, err := f.svc.CreateShare(context.Background(), strings.NewReader("payload"), 7, "report.pdf", recipients)
	require.NoError(t, err)
	return result.Share.FileID
}

func TestShareLifecycleFullConsumption(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t, "a@x.com", "b@x.com")

	share, err := f.svc.GetShare(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"a@x.com": false, "b@x.com": false}, share.ClickStatus)
	require.False(t, share.Deleted)
	require.ElementsMatch(t, []string{"a@x.com", "b@x.com"}, f.notifier.sent)
	require.True(t, f.blobs.Has(id))

	link, err := f.svc.ResolveDownload(context.Background(), id, "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, link)

	share, err = f.svc.GetShare(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"a@x.com": true, "b@x.com": false}, share.ClickStatus)
	require.False(t, share.Deleted)
	require.False(t, f.svc.IsFullyConsumed(share))

	_, err = f.svc.ResolveDownload(context.Background(), id, "b@x.com")
	require.NoError(t, err)

	f.cleaner.Wait()

	share, err = f.svc.GetShare(context.Background(), id)
	require.NoError(t, err)
	require.True(t, share.Deleted)
	require.True(t, f.svc.IsFullyConsumed(share))
	require.False(t, f.blobs.Has(id))

	_, err = f.svc.ResolveDownload(context.Background(), id, "a@x.com")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = f.svc.ResolveDownload(context.Background(), id, "b@x.com")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestResolveDownloadNonRecipient(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t, "a@x.com", "b@x.com")

	_, err := f.svc.ResolveDownload(context.Background(), id, "c@x.com")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)

	share, err := f.svc.GetShare(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"a@x.com": false, "b@x.com": false}, share.ClickStatus)
}

func TestResolveDownloadUnknownShare(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.ResolveDownload(context.Background(), "no-such-id", "a@x.com")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestRepeatDownloadIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t, "a@x.com", "b@x.com")

	for i := 0; i < 3; i++ {
		link, err := f.svc.ResolveDownload(context.Background(), id, "a@x.com")
		require.NoError(t, err)
		require.NotEmpty(t, link)
	}
	f.cleaner.Wait()

	share, err := f.svc.GetShare(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"a@x.com": true, "b@x.com": false}, share.ClickStatus)
	require.False(t, share.Deleted)
	require.True(t, f.blobs.Has(id))
}

func TestCreateShareRejectsEmptyRecipients(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.CreateShare(context.Background(), strings.NewReader("x"), 1, "a.txt", nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = f.svc.CreateShare(context.Background(), strings.NewReader("x"), 1, "a.txt", []string{" ", "not-an-email"})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	require.Equal(t, 0, f.blobs.Len())
}

func TestCreateShareCompensatesOrphanedBlob(t *testing.T) {
	f := newFixture(t, false)
	f.store.CreateErr = errors.New("record store down")

	_, err := f.svc.CreateShare(context.Background(), strings.NewReader("x"), 1, "a.txt", []string{"a@x.com"})
	require.Error(t, err)
	require.Equal(t, 0, f.blobs.Len(), "blob must not be orphaned when the record write fails")
	require.Empty(t, f.notifier.sent)
}

func TestCreateShareNormalizesRecipients(t *testing.T) {
	f := newFixture(t, false)
	result, err := f.svc.CreateShare(context.Background(), strings.NewReader("x"), 1, "a.txt",
		[]string{" A@X.com ", "a@x.com", "b@x.com"})
	require.NoError(t, err)
	require.Equal(t, []string{"a@x.com", "b@x.com"}, result.Share.Recipients)

	_, err = f.svc.ResolveDownload(context.Background(), result.Share.FileID, "A@X.COM")
	require.NoError(t, err)
}

func TestConcurrentClicksBothPersist(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t, "a@x.com", "b@x.com")

	emails := []string{"a@x.com", "b@x.com"}
	errs := make([]error, len(emails))
	var wg sync.WaitGroup
	for i, email := range emails {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			_, errs[i] = f.svc.ResolveDownload(context.Background(), id, email)
		}(i, email)
	}
	wg.Wait()
	f.cleaner.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	share, err := f.svc.GetShare(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"a@x.com": true, "b@x.com": true}, share.ClickStatus)
	require.True(t, share.Deleted)
	require.False(t, f.blobs.Has(id))
}

func TestExclusiveModeRetiresOnFirstDownload(t *testing.T) {
	f := newFixture(t, true)
	id := f.create(t, "a@x.com", "b@x.com")

	_, err := f.svc.ResolveDownload(context.Background(), id, "a@x.com")
	require.NoError(t, err)
	f.cleaner.Wait()

	share, err := f.svc.GetShare(context.Background(), id)
	require.NoError(t, err)
	require.True(t, share.Deleted)
	require.False(t, f.blobs.Has(id))

	_, err = f.svc.ResolveDownload(context.Background(), id, "b@x.com")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestClickTrackingFailureStillReturnsURL(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t, "a@x.com")
	f.store.ClickErr = errors.New("update failed")

	link, err := f.svc.ResolveDownload(context.Background(), id, "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, link)

	f.cleaner.Wait()
	share, err := f.svc.GetShare(context.Background(), id)
	require.NoError(t, err)
	require.False(t, share.ClickStatus["a@x.com"])
	require.False(t, share.Deleted)
}

func TestNotifierFailureDoesNotFailUpload(t *testing.T) {
	f := newFixture(t, false)
	f.notifier.err = errors.New("smtp down")

	result, err := f.svc.CreateShare(context.Background(), strings.NewReader("x"), 1, "a.txt", []string{"a@x.com"})
	require.NoError(t, err)
	require.False(t, result.Notified)
	require.True(t, f.blobs.Has(result.Share.FileID))
}

func TestEvaluateAndMarkDeleteTransitionsOnce(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t, "a@x.com")

	transitioned, err := f.svc.EvaluateAndMarkDelete(context.Background(), id)
	require.NoError(t, err)
	require.False(t, transitioned, "not consumed yet")

	require.NoError(t, f.svc.RegisterClick(context.Background(), id, "a@x.com"))

	transitioned, err = f.svc.EvaluateAndMarkDelete(context.Background(), id)
	require.NoError(t, err)
	require.True(t, transitioned)

	transitioned, err = f.svc.EvaluateAndMarkDelete(context.Background(), id)
	require.NoError(t, err)
	require.False(t, transitioned, "second evaluation must be a no-op")
}
