// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

/*
Package services adapts daemon components to suture.Service.

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTPServerService:
  - runs *http.Server and shuts it down gracefully on cancel

HubService:
  - runs websocket.Hub.RunWithContext

StorageGCService:
  - calls storage.BadgerKV.RunGC on an interval

syncer.Trigger and netstatus.Prober implement suture.Service directly and
need no wrapper.

# Usage Example

	tree.AddDataService(services.NewStorageGCService(kv, 5*time.Minute))
	tree.AddSyncService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
*/
package services
