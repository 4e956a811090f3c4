package payroll

// DefaultPIN protects a payslip when the spreadsheet has no pin for the employee.
const DefaultPIN = "1234"

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"

	WarningNetVariance    = "net_variance"
	WarningNegativeAmount = "negative_amount"

	LayoutTwoColumn Layout = "two-column"
	LayoutSingle    Layout = "single"
)

const (
	ColMonth       = "Month"
	ColEmail       = "Email"
	ColName        = "Name"
	ColBasicSalary = "Basic Salary"
	ColNetSalary   = "Net Salary"
	ColOvertime    = "Overtime"
	ColAllowance   = "Allowance"
	ColBonus       = "Bonus"
	ColPAYETax     = "PAYE Tax"
	ColSHA         = "SHA"
	ColNSSF        = "NSSF"
	ColPenalties   = "Penalties"
	ColDeductions  = "Deductions"
	ColEmployeeID  = "Employee ID"
	ColDepartment  = "Department"
	ColPosition    = "Position"
	ColPIN         = "pin"
)

var RequiredColumns = []string{ColMonth, ColEmail, ColName, ColBasicSalary, ColNetSalary}

var OptionalColumns = []string{
	ColOvertime,
	ColAllowance,
	ColBonus,
	ColPAYETax,
	ColSHA,
	ColNSSF,
	ColPenalties,
	ColDeductions,
	ColEmployeeID,
	ColDepartment,
	ColPosition,
	ColPIN,
}
