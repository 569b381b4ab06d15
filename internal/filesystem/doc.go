/*
Package filesystem wraps os.Stat and os.Open with retry logic for NFS stale
file handle errors.

Media libraries frequently live on network mounts. When the server side
changes underneath a client, stat and open calls can fail with ESTALE
(errno 116) even though the file is still there. The indexer treats a
failed stat during reconciliation as "keep the row", so transient ESTALE
failures are retried here before they reach the caller.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if errors.Is(err, fs.ErrNotExist) {
	    // the file is gone
	}

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer f.Close()

# Retry Behavior

Only ESTALE triggers retries; every other error is returned immediately
and unchanged, so callers can keep using errors.Is(err, fs.ErrNotExist).
Defaults are 3 retries with exponential backoff from 50ms capped at 500ms.

# Metrics

Retry attempts, successes, failures and stale errors are reported through
an Observer installed with SetObserver. The metrics package provides the
Prometheus-backed implementation; with no observer installed nothing is
recorded.
*/
package filesystem
