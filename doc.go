// Package gymgate implements the authentication and authorization core of a
// multi-tenant gym management platform: a role-discriminated credential
// store, token based sessions, a status driven account lifecycle, and the
// HTTP surface gyms and their members sign in through.
//
// Gym owners, trainers and members share one principals table; the role
// column selects which payload fields apply. Owners and trainers claim an
// email address globally while member emails are only unique per gym.
// Accounts start out pending and move through the lifecycle
// (pending, active, suspended, inactive) under gym owner control.
package gymgate
