package calc

// HelpText is printed for the "help" command.
const HelpText = `This is a calculator which includes variable support
Evaluated in the order of BODMAS
Supported symbols : + - * / % () {}
Example expression : 5*{2+(3-2)}/8;
Declare variables like : let var_name = expression;
Example : let a = 5;
Assign already declared variables as : var_name = expression;
Example : a = 3 + 2;
Use const instead of let while declaring to prevent assignment later
Example : const tau = 6.28;
pi and e are already declared constants
Press ; to end statement
Type in "help" for this help screen
Type in "quit" to quit`
