// Package memberquery is the service layer over the member query engine:
// generic entity services and MemberService, which sets audit fields
// explicitly and mirrors members read by id.
package memberquery
