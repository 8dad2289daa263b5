package testsupport

import (
	"context"
	"sync"

	"studiocast/internal/studio"
)

// Driver operation names used in FakeDriver scripts and call logs.
const (
	OpStart        = "start"
	OpSetCookies   = "set_cookies"
	OpOpenUpload   = "open_upload"
	OpFillMetadata = "fill_metadata"
	OpApplyToggles = "apply_toggles"
	OpPublish      = "publish"
	OpResultURL    = "result_url"
	OpCookies      = "cookies"
)

// FakeDriver is a scripted studio.Driver. Errors queued per operation are
// returned in order; once a queue drains the operation succeeds.
type FakeDriver struct {
	mu sync.Mutex

	errs    map[string][]error
	calls   []string
	closed  int
	cookies []studio.Cookie

	// URLs are returned by successive ResultURL calls; the last entry
	// repeats. Empty means "not yet published".
	URLs []string
	// BlockOn makes the named operation wait for context cancellation.
	BlockOn string
	// Refreshed is returned by Cookies.
	Refreshed []studio.Cookie

	Metadata   studio.Metadata
	Toggles    studio.Toggles
	Visibility studio.Visibility
	Uploaded   string

	urlCalls int
}

// NewFakeDriver returns a driver that publishes to url.
func NewFakeDriver(url string) *FakeDriver {
	return &FakeDriver{errs: make(map[string][]error), URLs: []string{url}}
}

// FailNext queues errors for op.
func (d *FakeDriver) FailNext(op string, errs ...error) *FakeDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[op] = append(d.errs[op], errs...)
	return d
}

// Calls returns the operations invoked so far.
func (d *FakeDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Count returns how many times op was invoked.
func (d *FakeDriver) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Closed returns how many times Close was called.
func (d *FakeDriver) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// InjectedCookies returns the cookies passed to SetCookies.
func (d *FakeDriver) InjectedCookies() []studio.Cookie {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]studio.Cookie(nil), d.cookies...)
}

func (d *FakeDriver) step(ctx context.Context, op string) error {
	d.mu.Lock()
	d.calls = append(d.calls, op)
	block := d.BlockOn == op
	var err error
	if queue := d.errs[op]; len(queue) > 0 {
		err = queue[0]
		d.errs[op] = queue[1:]
	}
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (d *FakeDriver) Start(ctx context.Context) error { return d.step(ctx, OpStart) }

func (d *FakeDriver) SetCookies(ctx context.Context, cookies []studio.Cookie) error {
	if err := d.step(ctx, OpSetCookies); err != nil {
		return err
	}
	d.mu.Lock()
	d.cookies = append([]studio.Cookie(nil), cookies...)
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) OpenUpload(ctx context.Context, path string) error {
	if err := d.step(ctx, OpOpenUpload); err != nil {
		return err
	}
	d.mu.Lock()
	d.Uploaded = path
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) FillMetadata(ctx context.Context, meta studio.Metadata) error {
	if err := d.step(ctx, OpFillMetadata); err != nil {
		return err
	}
	d.mu.Lock()
	d.Metadata = meta
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) ApplyToggles(ctx context.Context, toggles studio.Toggles) error {
	if err := d.step(ctx, OpApplyToggles); err != nil {
		return err
	}
	d.mu.Lock()
	d.Toggles = toggles
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) Publish(ctx context.Context, visibility studio.Visibility) error {
	if err := d.step(ctx, OpPublish); err != nil {
		return err
	}
	d.mu.Lock()
	d.Visibility = visibility
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) ResultURL(ctx context.Context) (string, error) {
	if err := d.step(ctx, OpResultURL); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.URLs) == 0 {
		return "", nil
	}
	idx := d.urlCalls
	if idx >= len(d.URLs) {
		idx = len(d.URLs) - 1
	}
	d.urlCalls++
	return d.URLs[idx], nil
}

func (d *FakeDriver) Cookies(ctx context.Context) ([]studio.Cookie, error) {
	if err := d.step(ctx, OpCookies); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]studio.Cookie(nil), d.Refreshed...), nil
}

func (d *FakeDriver) Close() error {
	d.mu.Lock()
	d.closed++
	d.mu.Unlock()
	return nil
}

// DriverFactory hands out drivers in order and records which account asked.
type DriverFactory struct {
	mu       sync.Mutex
	drivers  []*FakeDriver
	next     func() *FakeDriver
	accounts []string
}

// NewDriverFactory returns a factory yielding the given drivers in order and
// then fresh drivers from next. next may be nil.
func NewDriverFactory(next func() *FakeDriver, drivers ...*FakeDriver) *DriverFactory {
	return &DriverFactory{drivers: drivers, next: next}
}

// Factory adapts f to studio.Factory.
func (f *DriverFactory) Factory() studio.Factory {
	return func(_ context.Context, account string) (studio.Driver, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.accounts = append(f.accounts, account)
		if len(f.drivers) > 0 {
			d := f.drivers[0]
			f.drivers = f.drivers[1:]
			return d, nil
		}
		if f.next != nil {
			return f.next(), nil
		}
		return NewFakeDriver("https://youtu.be/fake"), nil
	}
}

// Accounts returns the account names requested so far.
func (f *DriverFactory) Accounts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.accounts...)
}
