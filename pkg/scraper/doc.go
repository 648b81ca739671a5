// Package scraper runs the end to end sync against the CMS portal.
//
// A Pipeline moves through these states:
//
//	init -> authenticating -> authenticated -> catalog_ready ->
//	files_listed -> dirs_ready -> downloading -> done
//
// A rejected login moves to failed, removes the stored credentials and
// returns to authenticating, up to credentials.max_auth_attempts times.
//
// Usage:
//
//	creds := auth.NewManager(store, auth.NewTerminalPrompter(), log)
//	p, err := scraper.New(cfg, creds, log)
//	if err != nil {
//		return err
//	}
//	report, err := p.Run(ctx)
//
// A course whose page cannot be fetched or parsed is logged and skipped.
// A file that fails to download is logged and counted in the Report. Both
// leave the run successful; the next run retries whatever is still missing.
package scraper
