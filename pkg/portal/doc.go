// Package portal talks to the CMS web portal.
//
// The portal sits behind IIS with Windows authentication, so every request
// goes through an NTLM negotiating transport. A Session holds one resty
// client built from configuration and the user's credentials:
//
//	session, err := portal.NewSession(cfg, creds, log)
//	if err != nil {
//		return err
//	}
//	if err := session.Authenticate(ctx); err != nil {
//		// errors.IsType(err, errors.ErrorTypeAuth) means bad credentials
//	}
//	doc, err := session.Document(ctx, session.Endpoints().HomeURL())
//
// Page fetches are single attempts. File downloads opened with Open are
// rate limited and retried on network failures, 429 and 5xx responses.
package portal
