// Package domain contains the core business entities, value objects, and
// domain logic of the task-assignment service: subscribers and their task
// settings, the profession catalog, and the boards and task instances that
// auto-assigned work is materialized into. It is independent of any specific
// infrastructure or delivery mechanism.
package domain
