// Package sdk provides the session and identity core shared by EduTrack clients.
//
// The package decides who the current user is, which data mode applies to the
// session, and keeps concurrently logged-in role accounts from clobbering each
// other's state. It provides:
//
//   - Resolver: maps a login attempt to a canonical backend identity
//   - Detector and ModeCache: demonstration vs live classification with a TTL
//   - RoleSession: role-scoped session lookup with a defined fallback order
//   - Controller: hydration, sign-in and sign-out orchestration
//   - SessionStore: durable per-role session records plus a "current" slot
//
// Flow:
//
//	startup → Controller.Hydrate → SessionStore("current")
//	       ↓                       ↓
//	   DemoCatalog hit        Backend.GetCurrentPrincipal
//
//	sign-in → Controller.SignIn → Resolver.Resolve → Backend.VerifyCredentials
//	                                               → FindUserByEmail / UpsertUser
//
// Remote calls go through the Backend interface. HTTPBackend implements it
// against campusapi; tests substitute their own.
package sdk
