// Package internal contains the core implementation packages for tagforge.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - dom: Markup tree, the tolerant HTML/XML parser and the serializer
//   - scanner: Discovery of template units in the components folder
//   - registry: Component registry and change notifications
//   - props: Template context built from a tag's attributes and children
//   - renderer: Template lookup, compilation caching and rendering
//   - engine: Recursive custom tag expansion over documents
//   - build: Directory builds with a worker pool, output cache and metrics
//   - watcher: File system monitoring with debouncing and incremental rebuilds
//   - server: Preview server with live reload over WebSocket
//   - config: Configuration loading, validation and the setup wizard
//   - errors: Typed errors, error collection and the HTML error overlay
//   - logging: Structured logging on log/slog
//   - validation: Path, extension and origin checks
//   - version: Build identity
//
// # Inter-Package Communication
//
//   - Scanner populates the registry; the engine reads its vocabulary from it
//   - Engine resolves templates through the renderer and contexts through props
//   - Build runs the engine over files; watcher and server drive build and engine
//     when sources or components change
//
// For detailed documentation, see the individual package documentation.
package internal
