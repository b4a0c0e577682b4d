package void

import "syscall"

// prepareExec prepares execve parameters
func prepareExec(args, env []string) (*byte, []*byte, []*byte, error) {
	argv0, err := syscall.BytePtrFromString(args[0])
	if err != nil {
		return nil, nil, nil, err
	}
	argv, err := syscall.SlicePtrFromStrings(args)
	if err != nil {
		return nil, nil, nil, err
	}
	envv, err := syscall.SlicePtrFromStrings(env)
	if err != nil {
		return nil, nil, nil, err
	}
	return argv0, argv, envv, nil
}

// prepareFds prepares the fd array and the first fd safely above it
func prepareFds(files []uintptr) ([]int, int) {
	fd := make([]int, len(files))
	nextfd := len(files)
	for i, ufd := range files {
		if nextfd < int(ufd) {
			nextfd = int(ufd)
		}
		fd[i] = int(ufd)
	}
	nextfd++
	return fd, nextfd
}

// syscallStringFromString prepares *byte if string is not empty, otherwise nil
func syscallStringFromString(str string) (*byte, error) {
	if str != "" {
		return syscall.BytePtrFromString(str)
	}
	return nil, nil
}
