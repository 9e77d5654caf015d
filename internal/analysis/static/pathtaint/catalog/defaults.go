// Filename: catalog/defaults.go
package catalog

import "sync"

// Shorthand builders for the default table.
func returnSource(name, category string) Entry {
	return Entry{Name: name, Role: RoleSource, Category: category}
}

func bufferSource(name string, arg int, variadic bool, category string) Entry {
	return Entry{Name: name, Role: RoleSource, ArgIndex: intPtr(arg), Variadic: variadic, Category: category}
}

func sink(name string, arg int, category string) Entry {
	return Entry{Name: name, Role: RoleSink, ArgIndex: intPtr(arg), Category: category}
}

func sanitizer(name, category string) Entry {
	return Entry{Name: name, Role: RoleSanitizer, Category: category}
}

func propagator(name string, arg int, mode Mode) Entry {
	return Entry{Name: name, Role: RolePropagator, ArgIndex: intPtr(arg), Mode: mode, Category: "buffer"}
}

// DefaultEntries returns the built-in catalog for CWE-022 in C.
func DefaultEntries() []Entry {
	return []Entry{
		// -- Sources --
		{Name: "main", Role: RoleParamSource, ArgIndex: intPtr(1), Category: "command_line", Description: "argv"},
		{Name: "wmain", Role: RoleParamSource, ArgIndex: intPtr(1), Category: "command_line", Description: "argv"},

		returnSource("getenv", "environment"),
		returnSource("secure_getenv", "environment"),
		returnSource("readline", "user_input"),

		bufferSource("scanf", 1, true, "user_input"),
		bufferSource("fscanf", 2, true, "user_input"),
		bufferSource("gets", 0, false, "user_input"),
		bufferSource("fgets", 0, false, "user_input"),
		bufferSource("getline", 0, false, "user_input"),
		bufferSource("getdelim", 0, false, "user_input"),
		bufferSource("read", 1, false, "io"),
		bufferSource("pread", 1, false, "io"),
		bufferSource("fread", 0, false, "io"),
		bufferSource("recv", 1, false, "network"),
		bufferSource("recvfrom", 1, false, "network"),
		bufferSource("recvmsg", 1, false, "network"),

		// -- Sinks --
		sink("fopen", 0, "file_open"),
		sink("fopen64", 0, "file_open"),
		sink("freopen", 0, "file_open"),
		sink("open", 0, "file_open"),
		sink("open64", 0, "file_open"),
		sink("openat", 1, "file_open"),
		sink("creat", 0, "file_open"),
		sink("stat", 0, "file_info"),
		sink("lstat", 0, "file_info"),
		sink("fstatat", 1, "file_info"),
		sink("statvfs", 0, "fs_info"),
		sink("access", 0, "file_access"),
		sink("unlink", 0, "file_delete"),
		sink("unlinkat", 1, "file_delete"),
		sink("remove", 0, "file_delete"),
		sink("rename", 0, "file_move"),
		sink("rename", 1, "file_move"),
		sink("renameat", 1, "file_move"),
		sink("renameat", 3, "file_move"),
		sink("link", 0, "file_link"),
		sink("link", 1, "file_link"),
		sink("linkat", 1, "file_link"),
		sink("linkat", 3, "file_link"),
		sink("symlink", 1, "file_link"),
		sink("readlink", 0, "file_link"),
		sink("truncate", 0, "file_write"),
		sink("mkdir", 0, "dir_create"),
		sink("mkdirat", 1, "dir_create"),
		sink("mkfifo", 0, "file_create"),
		sink("rmdir", 0, "dir_delete"),
		sink("chdir", 0, "dir_change"),
		sink("chroot", 0, "dir_change"),
		sink("opendir", 0, "dir_open"),
		sink("scandir", 0, "dir_open"),
		sink("realpath", 0, "path_resolve"),
		sink("canonicalize_file_name", 0, "path_resolve"),
		sink("chmod", 0, "file_mode"),
		sink("chown", 0, "file_owner"),
		sink("lchown", 0, "file_owner"),
		sink("utime", 0, "file_time"),
		sink("dlopen", 0, "library_load"),

		// -- Sanitizers --
		{Name: LiteralOperation, Role: RoleSanitizer, Category: "constant", Description: "assignment of a compile-time constant"},
		sanitizer("strtod", "numeric_parse"),
		sanitizer("strtof", "numeric_parse"),
		sanitizer("strtold", "numeric_parse"),
		sanitizer("strtol", "numeric_parse"),
		sanitizer("strtoll", "numeric_parse"),
		sanitizer("strtoul", "numeric_parse"),
		sanitizer("strtoull", "numeric_parse"),
		sanitizer("strtoimax", "numeric_parse"),
		sanitizer("strtoumax", "numeric_parse"),
		sanitizer("atoi", "numeric_parse"),
		sanitizer("atol", "numeric_parse"),
		sanitizer("atoll", "numeric_parse"),
		sanitizer("atof", "numeric_parse"),

		// -- Propagators --
		propagator("strcpy", 0, ModeCopy),
		propagator("strncpy", 0, ModeCopy),
		propagator("stpcpy", 0, ModeCopy),
		propagator("stpncpy", 0, ModeCopy),
		propagator("strlcpy", 0, ModeCopy),
		propagator("wcscpy", 0, ModeCopy),
		propagator("wcsncpy", 0, ModeCopy),
		propagator("memcpy", 0, ModeCopy),
		propagator("memmove", 0, ModeCopy),
		propagator("sprintf", 0, ModeCopy),
		propagator("snprintf", 0, ModeCopy),
		propagator("vsprintf", 0, ModeCopy),
		propagator("vsnprintf", 0, ModeCopy),
		propagator("strcat", 0, ModeAppend),
		propagator("strncat", 0, ModeAppend),
		propagator("strlcat", 0, ModeAppend),
		propagator("wcscat", 0, ModeAppend),
		propagator("wcsncat", 0, ModeAppend),
		{Name: "sscanf", Role: RolePropagator, ArgIndex: intPtr(2), Variadic: true, Mode: ModeCopy, Category: "buffer"},
		// The resolvers are sinks for their input and hand the resolved path on.
		{Name: "realpath", Role: RolePropagator, ArgIndex: intPtr(1), Mode: ModeCopy, Category: "path_resolve"},
		{Name: "canonicalize_file_name", Role: RolePropagator, Mode: ModeReturn, Category: "path_resolve"},
	}
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the shared built-in catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := New(DefaultEntries()...)
		if err != nil {
			panic("built-in catalog is invalid: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
