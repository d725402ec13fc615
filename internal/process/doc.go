// Package process runs HTML to PDF conversions on a pool of pre-spawned
// wkhtmltopdf subprocesses.
//
// Each worker is started in --read-args-from-stdin mode, so it sits blocked
// on stdin until a conversion arrives. Convert writes one control line with
// the encoded options, streams the document after it, and hands back the
// worker's stdout as a Result. A worker serves exactly one conversion.
//
// The Pool keeps up to MaxIdle workers warm:
//   - Convert takes the oldest idle worker, or spawns one when none is left
//   - The monitor refills the idle set every MonitorInterval
//   - Workers whose input failed are killed, exited workers are dropped
//   - Shutdown kills everything and is safe to call repeatedly
//
// Example usage:
//
//	pool := process.NewPool(&process.PoolOptions{
//	    MaxIdle:         process.ResolveMaxIdle(-1),
//	    MonitorInterval: 5 * time.Second,
//	})
//	defer pool.Shutdown()
//
//	res, err := pool.Convert(ctx, strings.NewReader("<h1>Hi</h1>"), wkhtmltopdf.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer res.Close()
//	_, err = io.Copy(out, res)
package process
