// Package authz decides whether the worker may act on a resource.
//
// Authorizers are registered per resource type. A type without a registered
// authorizer falls back to the default authorizer, which consults the custom
// authorizer for that type when one exists and permits everything otherwise.
package authz
