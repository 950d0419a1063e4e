// Package vulkan is the thin object-wrapper layer over github.com/goki/vulkan
// (spec.md §4, "GPU object wrappers"). It owns native handle lifetime and
// translates low-level GPU-API errors to Go errors at the wrapper boundary
// (spec.md §7: "low-level GPU-API errors are mapped to Ok | Kind at the
// wrapper boundary; caches never throw"). The cache packages (shader,
// descriptor, pipeline) reach it only through the narrow Device-shaped
// interfaces it satisfies, though they still use github.com/goki/vulkan
// handle types; staging, frame, renderer and batchquad use *Context
// directly.
//
// Adapted from the teacher's engine/renderer/vulkan package file-for-file;
// see DESIGN.md for the per-file grounding.
package vulkan

import (
	vk "github.com/goki/vulkan"
)

// ResultString renders a VkResult with an optional extended description,
// adapted verbatim from the teacher's VulkanResultString.
func ResultString(result vk.Result, extended bool) string {
	switch result {
	case vk.Success:
		return conditional(!extended, "VK_SUCCESS", "VK_SUCCESS: command completed successfully")
	case vk.NotReady:
		return conditional(!extended, "VK_NOT_READY", "VK_NOT_READY: a fence or query has not yet completed")
	case vk.Timeout:
		return conditional(!extended, "VK_TIMEOUT", "VK_TIMEOUT: a wait operation has not completed in the specified time")
	case vk.Suboptimal:
		return conditional(!extended, "VK_SUBOPTIMAL_KHR", "VK_SUBOPTIMAL_KHR: swapchain no longer matches the surface exactly")
	case vk.ErrorOutOfHostMemory:
		return conditional(!extended, "VK_ERROR_OUT_OF_HOST_MEMORY", "VK_ERROR_OUT_OF_HOST_MEMORY: a host memory allocation has failed")
	case vk.ErrorOutOfDeviceMemory:
		return conditional(!extended, "VK_ERROR_OUT_OF_DEVICE_MEMORY", "VK_ERROR_OUT_OF_DEVICE_MEMORY: a device memory allocation has failed")
	case vk.ErrorDeviceLost:
		return conditional(!extended, "VK_ERROR_DEVICE_LOST", "VK_ERROR_DEVICE_LOST: the logical or physical device has been lost")
	case vk.ErrorOutOfDate:
		return conditional(!extended, "VK_ERROR_OUT_OF_DATE_KHR", "VK_ERROR_OUT_OF_DATE_KHR: the swapchain no longer matches the surface")
	case vk.ErrorSurfaceLost:
		return conditional(!extended, "VK_ERROR_SURFACE_LOST_KHR", "VK_ERROR_SURFACE_LOST_KHR: the surface is no longer available")
	case vk.ErrorInitializationFailed:
		return conditional(!extended, "VK_ERROR_INITIALIZATION_FAILED", "VK_ERROR_INITIALIZATION_FAILED")
	default:
		return conditional(!extended, "VK_ERROR_UNKNOWN", "an unrecognized VkResult was returned")
	}
}

// IsSuccess reports whether result represents either unqualified success or
// one of the non-fatal informational codes (NotReady, Timeout, Suboptimal,
// Incomplete) that a caller may choose to treat as success.
func IsSuccess(result vk.Result) bool {
	switch result {
	case vk.Success, vk.NotReady, vk.Timeout, vk.Incomplete, vk.Suboptimal:
		return true
	default:
		return false
	}
}

// IsFatal reports whether result belongs to spec.md §7 tier 3 ("out of
// host/device memory, device lost") — conditions this engine cannot recover
// from and must terminate on, as opposed to tier 2 conditions like
// ErrorOutOfDate which trigger a resize.
func IsFatal(result vk.Result) bool {
	switch result {
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorDeviceLost:
		return true
	default:
		return false
	}
}

func conditional(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

// SafeString NUL-terminates s for passing into a C-ABI string slot.
func SafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

// SafeStrings NUL-terminates every element of list in place and returns it.
func SafeStrings(list []string) []string {
	for i := range list {
		list[i] = SafeString(list[i])
	}
	return list
}

// FindFirstZero returns the index of the first zero byte in arr, or len(arr)
// if none is found — used to trim fixed-size C char arrays (extension and
// layer names) down to their Go string form.
func FindFirstZero(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}
