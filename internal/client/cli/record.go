package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/common"
)

func (a *App) promptRecordKey() (period, subkey string, err error) {
	period, err = getSimpleText(a.reader, "Week (e.g. 2026-W35)", os.Stdout)
	if err != nil {
		return "", "", err
	}
	subkey, err = getSimpleText(a.reader, "Subkey (empty for the main record)", os.Stdout)
	if err != nil {
		return "", "", err
	}
	return period, subkey, nil
}

// Submit prompts for a week, an optional subkey, and the priority text, then
// encrypts and uploads the record. Re-submitting the same week replaces the
// previous version.
func (a *App) Submit(ctx context.Context) error {
	period, subkey, err := a.promptRecordKey()
	if err != nil {
		return err
	}

	body, err := GetMultiline(a.reader, "Enter priorities for the week", os.Stdout)
	if err != nil {
		return err
	}
	if body == "" {
		return errors.New("nothing to submit")
	}

	if err := a.recordService.Save(ctx, period, subkey, []byte(body)); err != nil {
		return err
	}

	printlnFn("Saved", period)
	return nil
}

// Show fetches and decrypts one record, falling back to the local cache when
// the server is unreachable.
func (a *App) Show(ctx context.Context) error {
	period, subkey, err := a.promptRecordKey()
	if err != nil {
		return err
	}

	entry, err := a.recordService.Get(ctx, period, subkey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, client.ErrLocalDataNotAvailable) {
			printlnFn("No record for", period)
			return nil
		}
		return err
	}

	printlnFn(fmt.Sprintf("%s (v%d)", entry.Period, entry.Version))
	printlnFn(string(entry.Payload))
	return nil
}

// List prints every record of the logged-in user, newest period first.
func (a *App) List(ctx context.Context) error {
	entries, err := a.recordService.List(ctx)
	if err != nil {
		if errors.Is(err, client.ErrLocalDataNotAvailable) {
			printlnFn("No records")
			return nil
		}
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Period != entries[j].Period {
			return entries[i].Period > entries[j].Period
		}
		return entries[i].Subkey < entries[j].Subkey
	})

	for _, e := range entries {
		label := e.Period
		if e.Subkey != "" {
			label += "/" + e.Subkey
		}
		printlnFn(fmt.Sprintf("%s (v%d): %s", label, e.Version, string(e.Payload)))
	}
	return nil
}

// Delete removes one record on the server and from the cache.
func (a *App) Delete(ctx context.Context) error {
	period, subkey, err := a.promptRecordKey()
	if err != nil {
		return err
	}

	if err := a.recordService.Delete(ctx, period, subkey); err != nil {
		return err
	}

	printlnFn("Deleted", period)
	return nil
}
