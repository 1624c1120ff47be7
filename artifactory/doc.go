// Package artifactory is a typed Go client for the JFrog Artifactory REST
// API. It models repository locations as immutable Path values with a
// pathlib-flavored surface (Stat, Iterdir, Glob, ReadBytes, WriteBytes,
// Properties, ...) plus instance-level operations on the Client (AQL,
// Repositories, Users, Ping, Version).
//
// Copyright (C) 2026 pkt.systems <https://pkt.systems>
//
// # Quick start
//
// Construct a client with New. A base URL without a path component gains the
// "/artifactory" context automatically, matching how self-hosted instances
// expose the REST API:
//
//	cli, err := artifactory.New("https://repo.example.com",
//	    artifactory.WithToken(os.Getenv("ARTIFACTORY_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cli.Close()
//
//	p, err := cli.Path("libs-release-local", "com/acme/app/1.2.3/app-1.2.3.jar")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	info, err := p.Stat(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(info.Size, info.SHA256)
//
// # Authentication
//
// Exactly one method may be configured: WithToken (bearer access token),
// WithAPIKey (legacy X-JFrog-Art-Api header), or WithBasicAuth. New rejects
// combinations, missing password halves, and token values that look like a
// lone JWT header segment (a common copy-paste mistake).
//
// # Errors
//
// Non-2xx responses surface as *APIError carrying the status code, the
// request endpoint, and any messages decoded from the Artifactory error
// envelope. Use errors.As to branch on it; APIError.IsNotFound covers the
// common existence probe.
//
// # Timeouts and cancellation
//
// Every request runs under the caller's context plus the client's configured
// timeout (WithTimeout, default 30s). There is no retry logic in this layer.
package artifactory
