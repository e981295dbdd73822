package global

var (
	// Name 程序名称
	Name string = "VM Backup Service"
)
