package void

import (
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	setGIDAllow = []byte("allow")
	setGIDDeny  = []byte("deny")
)

// writeIDMaps writes user ID and group ID mappings for an unshared
// user namespace; it runs in the parent, which still holds the
// capabilities the child gave up by entering the namespace.
func writeIDMaps(r *Runner, pid int) error {
	var uidMappings, gidMappings, setGroups []byte
	pidStr := strconv.Itoa(pid)

	if r.UIDMappings == nil {
		uidMappings = []byte("0 " + strconv.Itoa(unix.Geteuid()) + " 1")
	} else {
		uidMappings = formatIDMappings(r.UIDMappings)
	}
	if err := writeFile("/proc/"+pidStr+"/uid_map", uidMappings); err != nil {
		return err
	}

	if r.GIDMappings == nil || !r.GIDMappingsEnableSetgroups {
		setGroups = setGIDDeny
	} else {
		setGroups = setGIDAllow
	}
	if err := writeFile("/proc/"+pidStr+"/setgroups", setGroups); err != nil {
		return err
	}

	if r.GIDMappings == nil {
		gidMappings = []byte("0 " + strconv.Itoa(unix.Getegid()) + " 1")
	} else {
		gidMappings = formatIDMappings(r.GIDMappings)
	}
	return writeFile("/proc/"+pidStr+"/gid_map", gidMappings)
}

func formatIDMappings(idMap []syscall.SysProcIDMap) []byte {
	var data []byte
	for _, im := range idMap {
		data = append(data, []byte(strconv.Itoa(im.ContainerID)+" "+strconv.Itoa(im.HostID)+" "+strconv.Itoa(im.Size)+"\n")...)
	}
	return data
}

func writeFile(path string, content []byte) error {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	if _, err := unix.Write(fd, content); err != nil {
		unix.Close(fd)
		return err
	}
	return unix.Close(fd)
}
